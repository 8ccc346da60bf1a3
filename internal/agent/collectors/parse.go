package collector

import (
	"bufio"
	"bytes"
	"strings"

	shared "FleetGuard/internal/shared/models"
)

// ParseUnitFiles разбирает вывод systemctl list-unit-files: имя сервиса -> включен ли он
func ParseUnitFiles(out []byte) map[string]bool {
	enabled := make(map[string]bool)
	for _, fields := range lines(out) {
		if len(fields) < 2 {
			continue
		}
		enabled[strings.TrimSuffix(fields[0], ".service")] = fields[1] == "enabled"
	}
	return enabled
}

// ParseServices разбирает вывод systemctl list-units (unit load active sub description)
func ParseServices(out []byte, enabled map[string]bool) []shared.ServiceInfo {
	services := []shared.ServiceInfo{}
	for _, fields := range lines(out) {
		if len(fields) < 4 || !strings.HasSuffix(fields[0], ".service") {
			continue
		}
		name := strings.TrimSuffix(fields[0], ".service")
		services = append(services, shared.ServiceInfo{
			Name:    name,
			Status:  fields[3],
			Enabled: enabled[name],
		})
	}
	return services
}

// ParseDpkg разбирает строки "пакет\tверсия\tсопровождающий"
func ParseDpkg(out []byte) []shared.SoftwareItem {
	items := []shared.SoftwareItem{}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), "\t")
		name := strings.TrimSpace(parts[0])
		if name == "" {
			continue
		}
		item := shared.SoftwareItem{Name: name}
		if len(parts) > 1 {
			item.Version = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			item.Publisher = strings.TrimSpace(parts[2])
		}
		items = append(items, item)
	}
	return items
}

// ParseVSCodeExtensions разбирает строки "publisher.name@version"
func ParseVSCodeExtensions(out []byte) []shared.ExtensionInfo {
	extensions := []shared.ExtensionInfo{}
	for _, fields := range lines(out) {
		id, version, _ := strings.Cut(fields[0], "@")
		if id == "" {
			continue
		}
		extensions = append(extensions, shared.ExtensionInfo{
			ID:       id,
			Category: shared.BlacklistCategory,
			Version:  version,
		})
	}
	return extensions
}

func lines(out []byte) [][]string {
	var result [][]string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		result = append(result, fields)
	}
	return result
}
