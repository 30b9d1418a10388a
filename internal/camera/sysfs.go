package camera

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"barcodescan/internal/domain"
	"barcodescan/internal/ports"
)

var frontNameHints = []string{"front", "user facing", "user-facing", "selfie"}

// listDevices enumerates V4L2 capture nodes under root. Metadata nodes (index != 0) are skipped.
// The first non-front device is marked as the default.
func listDevices(root string, frontDevices []string) ([]ports.DeviceDescriptor, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", root, err)
	}

	type node struct {
		number int
		desc   ports.DeviceDescriptor
	}

	nodes := make([]node, 0, len(entries))
	for _, entry := range entries {
		number, ok := videoNumber(entry.Name())
		if !ok {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if index := readAttr(dir, "index"); index != "" && index != "0" {
			continue
		}

		id := "/dev/" + entry.Name()
		name := readAttr(dir, "name")
		if name == "" {
			name = entry.Name()
		}

		position := domain.CameraPositionBack
		if isFront(id, name, frontDevices) {
			position = domain.CameraPositionFront
		}
		nodes = append(nodes, node{
			number: number,
			desc:   ports.DeviceDescriptor{ID: id, Name: name, Position: position},
		})
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].number < nodes[j].number })
	devices := lo.Map(nodes, func(n node, _ int) ports.DeviceDescriptor { return n.desc })

	_, defaultIndex, ok := lo.FindIndexOf(devices, func(d ports.DeviceDescriptor) bool {
		return d.Position != domain.CameraPositionFront
	})
	if !ok && len(devices) > 0 {
		defaultIndex, ok = 0, true
	}
	if ok {
		devices[defaultIndex].Default = true
	}
	return devices, nil
}

func videoNumber(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "video")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

func readAttr(dir string, attr string) string {
	data, err := os.ReadFile(filepath.Join(dir, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func isFront(id string, name string, frontDevices []string) bool {
	if lo.Contains(frontDevices, id) || lo.Contains(frontDevices, name) {
		return true
	}
	lower := strings.ToLower(name)
	return lo.SomeBy(frontNameHints, func(hint string) bool {
		return strings.Contains(lower, hint)
	})
}
