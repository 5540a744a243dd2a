package mqtt

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/adavila/ada/internal/config"
)

func TestStatsRecordTurn(t *testing.T) {
	s := NewStats()

	s.RecordTurn(100, 20)
	s.RecordTurn(50, 10)

	turns, in, out, last := s.Snapshot()
	if turns != 2 {
		t.Errorf("turns = %d, want 2", turns)
	}
	if in != 150 || out != 30 {
		t.Errorf("tokens = (%d, %d), want (150, 30)", in, out)
	}
	if last.IsZero() {
		t.Error("last turn time not set")
	}
}

func TestStatsConcurrentRecord(t *testing.T) {
	s := NewStats()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordTurn(1, 1)
		}()
	}
	wg.Wait()

	turns, in, out, _ := s.Snapshot()
	if turns != 50 || in != 50 || out != 50 {
		t.Errorf("counters = (%d, %d, %d), want (50, 50, 50)", turns, in, out)
	}
}

func TestLoadOrCreateInstanceID(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("LoadOrCreateInstanceID() error: %v", err)
	}
	if first == "" {
		t.Fatal("empty instance id")
	}

	second, err := LoadOrCreateInstanceID(dir)
	if err != nil {
		t.Fatalf("second LoadOrCreateInstanceID() error: %v", err)
	}
	if second != first {
		t.Errorf("instance id changed between calls: %q then %q", first, second)
	}

	data, err := os.ReadFile(filepath.Join(dir, "instance_id"))
	if err != nil {
		t.Fatalf("read instance_id file: %v", err)
	}
	if strings.TrimSpace(string(data)) != first {
		t.Errorf("file content = %q, want %q", data, first)
	}
}

func TestPublisherTopics(t *testing.T) {
	p := NewPublisher(config.MQTTConfig{}, "id", "model", NewStats(), nil)
	if got := p.availabilityTopic(); got != "ada/availability" {
		t.Errorf("availability topic = %q", got)
	}
	if got := p.stateTopic("turns"); got != "ada/turns" {
		t.Errorf("state topic = %q", got)
	}

	p = NewPublisher(config.MQTTConfig{TopicPrefix: "casa/ada"}, "id", "model", NewStats(), nil)
	if got := p.availabilityTopic(); got != "casa/ada/availability" {
		t.Errorf("prefixed availability topic = %q", got)
	}
}

func TestSensorDiscovery(t *testing.T) {
	p := NewPublisher(config.MQTTConfig{}, "instance-1", "claude-test", NewStats(), nil)

	defs := p.sensorDefinitions()
	if len(defs) == 0 {
		t.Fatal("no sensor definitions")
	}

	seen := make(map[string]bool)
	for _, d := range defs {
		if seen[d.config.UniqueID] {
			t.Errorf("duplicate unique_id %q", d.config.UniqueID)
		}
		seen[d.config.UniqueID] = true

		if d.config.StateTopic != p.stateTopic(d.entitySuffix) {
			t.Errorf("%s state topic = %q", d.entitySuffix, d.config.StateTopic)
		}
		if d.config.AvailabilityTopic != p.availabilityTopic() {
			t.Errorf("%s availability topic = %q", d.entitySuffix, d.config.AvailabilityTopic)
		}
		if len(d.config.Device.Identifiers) != 1 || d.config.Device.Identifiers[0] != "instance-1" {
			t.Errorf("%s device identifiers = %v", d.entitySuffix, d.config.Device.Identifiers)
		}
	}

	if got := p.discoveryTopic("sensor", "turns"); got != "homeassistant/sensor/ada/turns/config" {
		t.Errorf("discovery topic = %q", got)
	}
}
