package hwinfo

import "time"

// Component names produced by collectors.
const (
	ComponentDisk        = "disk"
	ComponentBIOS        = "bios"
	ComponentMotherboard = "motherboard"
	ComponentHost        = "host"
	ComponentMAC         = "mac"
	ComponentCPU         = "cpu"
	ComponentMemory      = "memory"
)

// Field keys within a component record.
const (
	FieldSerial = "serial"
	FieldUUID   = "uuid"
	FieldModel  = "model"
	FieldVendor = "vendor"
	FieldName   = "name"
	FieldTotal  = "total"
	FieldCores  = "cores"
)

// Component is one hardware component's facts. Fields carries structured
// key/value pairs; Raw holds the unparsed query output when the structured
// query degraded. A component may carry both.
type Component struct {
	Fields map[string]string `json:"fields,omitempty"`
	Raw    string            `json:"raw,omitempty"`
}

// Snapshot maps component names to their records. A Snapshot is created fresh
// per collection and never mutated afterwards.
type Snapshot struct {
	Components  map[string]Component `json:"components"`
	CollectedAt time.Time            `json:"collected_at"`
}

// Field returns the value of a structured field, or "" and false when the
// component or field is absent.
func (s Snapshot) Field(component, field string) (string, bool) {
	c, ok := s.Components[component]
	if !ok || c.Fields == nil {
		return "", false
	}
	v, ok := c.Fields[field]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
