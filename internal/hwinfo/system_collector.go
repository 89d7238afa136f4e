package hwinfo

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

const (
	dmiPath      = "/sys/class/dmi/id"
	blockDevPath = "/sys/class/block"
)

// SystemCollector builds Snapshots from the running host using gopsutil and
// the DMI/sysfs trees. Every component degrades independently: a failed query
// leaves that component absent or opaque, it never fails the collection.
type SystemCollector struct {
	dmiPath      string
	blockDevPath string
}

// NewSystemCollector creates a SystemCollector with default sysfs paths.
func NewSystemCollector() *SystemCollector {
	return &SystemCollector{
		dmiPath:      dmiPath,
		blockDevPath: blockDevPath,
	}
}

// Collect gathers a Snapshot of the host. It returns ErrCollectionFailed only
// when no component produced any data at all.
func (c *SystemCollector) Collect(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Components:  make(map[string]Component),
		CollectedAt: time.Now(),
	}

	if comp, ok := c.collectDisk(ctx); ok {
		snap.Components[ComponentDisk] = comp
	}
	if comp, ok := c.collectBIOS(); ok {
		snap.Components[ComponentBIOS] = comp
	}
	if comp, ok := c.collectMotherboard(); ok {
		snap.Components[ComponentMotherboard] = comp
	}
	if comp, ok := c.collectHost(ctx); ok {
		snap.Components[ComponentHost] = comp
	}
	if comp, ok := c.collectMAC(); ok {
		snap.Components[ComponentMAC] = comp
	}
	if comp, ok := c.collectCPU(ctx); ok {
		snap.Components[ComponentCPU] = comp
	}
	if comp, ok := c.collectMemory(ctx); ok {
		snap.Components[ComponentMemory] = comp
	}

	if len(snap.Components) == 0 {
		return Snapshot{}, ErrCollectionFailed
	}
	return snap, nil
}

func (c *SystemCollector) collectDisk(ctx context.Context) (Component, bool) {
	name, ok := c.primaryBlockDevice()
	if !ok {
		return Component{}, false
	}

	fields := map[string]string{FieldName: name}
	serial, err := disk.SerialNumberWithContext(ctx, filepath.Join("/dev", name))
	if err == nil && serial != "" {
		fields[FieldSerial] = strings.TrimSpace(serial)
	} else if data, rerr := os.ReadFile(filepath.Join(c.blockDevPath, name, "device", "serial")); rerr == nil {
		fields[FieldSerial] = strings.TrimSpace(string(data))
	}

	if _, ok := fields[FieldSerial]; !ok {
		// No structured serial, keep what we saw as opaque text.
		return Component{Raw: name, Fields: fields}, true
	}
	return Component{Fields: fields}, true
}

// primaryBlockDevice picks the first whole-disk block device, skipping
// partitions and loop/ram devices.
func (c *SystemCollector) primaryBlockDevice() (string, bool) {
	entries, err := os.ReadDir(c.blockDevPath)
	if err != nil {
		return "", false
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "sd") && !strings.HasPrefix(name, "nvme") &&
			!strings.HasPrefix(name, "vd") && !strings.HasPrefix(name, "mmcblk") {
			continue
		}
		if strings.HasPrefix(name, "nvme") && strings.Contains(name, "p") {
			continue
		}
		if strings.HasPrefix(name, "sd") && len(name) > 3 && name[3] >= '0' && name[3] <= '9' {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return names[0], true
}

func (c *SystemCollector) collectBIOS() (Component, bool) {
	fields := make(map[string]string)
	if v, ok := c.readDMI("product_serial"); ok {
		fields[FieldSerial] = v
	}
	if v, ok := c.readDMI("bios_vendor"); ok {
		fields[FieldVendor] = v
	}
	if v, ok := c.readDMI("bios_version"); ok {
		fields[FieldModel] = v
	}
	if len(fields) == 0 {
		return Component{}, false
	}
	return Component{Fields: fields}, true
}

func (c *SystemCollector) collectMotherboard() (Component, bool) {
	fields := make(map[string]string)
	if v, ok := c.readDMI("board_serial"); ok {
		fields[FieldSerial] = v
	}
	if v, ok := c.readDMI("board_vendor"); ok {
		fields[FieldVendor] = v
	}
	if v, ok := c.readDMI("board_name"); ok {
		fields[FieldModel] = v
	}
	if len(fields) == 0 {
		return Component{}, false
	}
	return Component{Fields: fields}, true
}

func (c *SystemCollector) collectHost(ctx context.Context) (Component, bool) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return Component{}, false
	}
	fields := map[string]string{
		FieldName: info.Hostname,
	}
	if info.HostID != "" {
		fields[FieldUUID] = strings.ToLower(info.HostID)
	}
	if info.Platform != "" {
		fields[FieldVendor] = fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
	}
	return Component{Fields: fields}, true
}

func (c *SystemCollector) collectMAC() (Component, bool) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return Component{}, false
	}
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return Component{Fields: map[string]string{
			FieldName:   iface.Name,
			FieldSerial: iface.HardwareAddr.String(),
		}}, true
	}
	return Component{}, false
}

func (c *SystemCollector) collectCPU(ctx context.Context) (Component, bool) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil || len(infos) == 0 {
		return Component{}, false
	}
	fields := map[string]string{
		FieldModel: infos[0].ModelName,
		FieldCores: fmt.Sprintf("%d", len(infos)),
	}
	if infos[0].VendorID != "" {
		fields[FieldVendor] = infos[0].VendorID
	}
	return Component{Fields: fields}, true
}

func (c *SystemCollector) collectMemory(ctx context.Context) (Component, bool) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Component{}, false
	}
	return Component{Fields: map[string]string{
		FieldTotal: fmt.Sprintf("%d", v.Total),
	}}, true
}

func (c *SystemCollector) readDMI(name string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(c.dmiPath, name))
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(string(data))
	if v == "" || v == "None" || v == "To be filled by O.E.M." {
		return "", false
	}
	return v, true
}
