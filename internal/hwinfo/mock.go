package hwinfo

import (
	"context"
	"time"
)

// MockCollector implements Collector for testing.
type MockCollector struct {
	Snap Snapshot
	Err  error
}

func (m *MockCollector) Collect(ctx context.Context) (Snapshot, error) {
	if m.Err != nil {
		return Snapshot{}, m.Err
	}
	// Hand out a fresh copy so callers cannot mutate the fixture.
	out := Snapshot{
		Components:  make(map[string]Component, len(m.Snap.Components)),
		CollectedAt: m.Snap.CollectedAt,
	}
	if out.CollectedAt.IsZero() {
		out.CollectedAt = time.Now()
	}
	for name, comp := range m.Snap.Components {
		fields := make(map[string]string, len(comp.Fields))
		for k, v := range comp.Fields {
			fields[k] = v
		}
		out.Components[name] = Component{Fields: fields, Raw: comp.Raw}
	}
	return out, nil
}

// TestSnapshot builds a Snapshot with the canonical identifying fields set.
// Empty values are omitted, mirroring degraded collections.
func TestSnapshot(diskSerial, biosSerial, boardSerial, hostUUID string) Snapshot {
	snap := Snapshot{Components: make(map[string]Component), CollectedAt: time.Now()}
	if diskSerial != "" {
		snap.Components[ComponentDisk] = Component{Fields: map[string]string{FieldSerial: diskSerial}}
	}
	if biosSerial != "" {
		snap.Components[ComponentBIOS] = Component{Fields: map[string]string{FieldSerial: biosSerial}}
	}
	if boardSerial != "" {
		snap.Components[ComponentMotherboard] = Component{Fields: map[string]string{FieldSerial: boardSerial}}
	}
	if hostUUID != "" {
		snap.Components[ComponentHost] = Component{Fields: map[string]string{FieldUUID: hostUUID}}
	}
	return snap
}
