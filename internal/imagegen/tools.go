package imagegen

import (
	"context"
	"fmt"

	"github.com/adavila/ada/internal/tools"
)

// RegisterTools adds the image generation tool to the registry. The
// generated image bypasses the model and goes straight out through the
// transport that originated the turn.
func RegisterTools(r *tools.Registry, client *Client) {
	r.MustRegister(&tools.Tool{
		Name:        "generate_image",
		Description: "Generate an image from a text description and send it to the user directly. Returns a confirmation; the image itself is delivered to the chat, not to you.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"prompt": map[string]any{
					"type":        "string",
					"description": "Description of the image to generate, in English for best results",
				},
				"caption": map[string]any{
					"type":        "string",
					"description": "Optional caption to show with the image",
				},
			},
			"required": []string{"prompt"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			messenger := tools.MessengerFromContext(ctx)
			if messenger == nil {
				return "", fmt.Errorf("no transport available to deliver the image")
			}

			img, err := client.Generate(ctx, tools.StringArg(args, "prompt"))
			if err != nil {
				return "", fmt.Errorf("generate image: %w", err)
			}

			conversationID := tools.ConversationIDFromContext(ctx)
			err = messenger.SendImage(ctx, conversationID, tools.Image{
				Data: img,
				MIME: "image/png",
				Name: "ada.png",
			}, tools.StringArg(args, "caption"))
			if err != nil {
				return "", fmt.Errorf("send image: %w", err)
			}
			return "Image generated and sent to the user.", nil
		},
	})
}
