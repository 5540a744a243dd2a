package web

// indexHTML is the entire chat page: no build step, no external
// assets, safe to serve from a loopback address.
const indexHTML = `<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Ada</title>
<style>
body { font-family: sans-serif; max-width: 640px; margin: 0 auto; padding: 1rem; }
#log { height: 70vh; overflow-y: auto; border: 1px solid #ccc; padding: .5rem; }
.me { text-align: right; color: #333; }
.ada { text-align: left; color: #06c; }
.typing { color: #999; font-style: italic; }
img { max-width: 100%; }
form { display: flex; gap: .5rem; margin-top: .5rem; }
input[type=text] { flex: 1; }
</style>
</head>
<body>
<h1>Ada</h1>
<div id="log"></div>
<form id="f">
<input type="text" id="msg" placeholder="Escribe..." autocomplete="off" autofocus>
<button>Enviar</button>
</form>
<script>
const token = new URLSearchParams(location.search).get("token") || "";
const proto = location.protocol === "https:" ? "wss" : "ws";
const ws = new WebSocket(proto + "://" + location.host + "/ws?token=" + encodeURIComponent(token));
const log = document.getElementById("log");
let typingEl = null;

function add(cls, node) {
  const div = document.createElement("div");
  div.className = cls;
  div.appendChild(node);
  log.appendChild(div);
  log.scrollTop = log.scrollHeight;
  return div;
}

ws.onmessage = (ev) => {
  const frame = JSON.parse(ev.data);
  if (typingEl) { typingEl.remove(); typingEl = null; }
  if (frame.type === "typing") {
    typingEl = add("typing", document.createTextNode("Ada está escribiendo..."));
  } else if (frame.type === "image") {
    const img = document.createElement("img");
    img.src = "data:" + frame.mime + ";base64," + frame.data;
    const wrap = add("ada", img);
    if (frame.caption) wrap.appendChild(document.createTextNode(frame.caption));
  } else {
    add("ada", document.createTextNode(frame.text));
  }
};

document.getElementById("f").onsubmit = (ev) => {
  ev.preventDefault();
  const input = document.getElementById("msg");
  if (!input.value) return;
  add("me", document.createTextNode(input.value));
  ws.send(JSON.stringify({text: input.value}));
  input.value = "";
};
</script>
</body>
</html>
`
