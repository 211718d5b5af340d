package service

import "os"

// removeLocal удаляет временные файлы; отсутствующие файлы игнорируются.
func removeLocal(paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}
