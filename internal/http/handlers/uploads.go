package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pribylovaa/go-accounts/internal/service"
)

// multipartMemory — сколько multipart-данных держим в памяти до сброса на диск.
const multipartMemory = 1 << 20

// parseMultipart разбирает multipart/form-data с учётом лимита тела.
// Вызывающий обязан вызвать возвращённую функцию очистки.
func (h *Handlers) parseMultipart(w http.ResponseWriter, r *http.Request) (func(), error) {
	h.limitBody(w, r)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return func() {}, badRequest(err)
	}

	return func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}, nil
}

// saveFormFile сохраняет файл из поля формы во временный локальный файл
// и возвращает путь. Отсутствующее поле — пустой путь без ошибки.
func (h *Handlers) saveFormFile(r *http.Request, field string) (string, error) {
	const op = "handlers.saveFormFile"

	src, hdr, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", badRequest(err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(h.opts.TempDir, "upload-*"+safeExt(hdr.Filename))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("%s: %w", op, badRequest(err))
	}

	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return dst.Name(), nil
}

// safeExt — расширение из имени клиента, только [a-z0-9], не длиннее 5 символов.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}

	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}

	return ext
}

func removeFiles(paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}

// missingFile — обязательный файл не передан.
func missingFile(field string) error {
	return fmt.Errorf("%w: %s file is missing", service.ErrMissingFields, field)
}
