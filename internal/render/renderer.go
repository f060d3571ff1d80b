// Package render turns a topology snapshot into the haproxy configuration
// file on disk.
package render

import (
	"bytes"
	"embed"
	"os"
	"path/filepath"
	"text/template"

	syncerrors "github.com/mir00r/haproxy-sync/internal/errors"
	"github.com/mir00r/haproxy-sync/internal/topology"
	"github.com/mir00r/haproxy-sync/pkg/logger"
)

//go:embed templates/haproxy.cfg.tmpl
var defaultTemplate embed.FS

// ServiceView is the per-service data handed to the template, with
// backends in stable name order.
type ServiceView struct {
	Name     string
	Port     string
	Backends []topology.Endpoint
}

// TemplateData is the root object the template renders.
type TemplateData struct {
	Services []ServiceView
}

// Renderer writes a snapshot through a template to the destination path.
type Renderer interface {
	RenderAndWrite(snapshot topology.Snapshot) error
}

// FileRenderer renders with text/template and replaces the destination
// file atomically.
type FileRenderer struct {
	template        *template.Template
	destinationPath string
	logger          *logger.Logger
}

// NewFileRenderer builds a renderer for destinationPath. When
// templateFile is empty the embedded default haproxy template is used.
func NewFileRenderer(templateFile, destinationPath string, log *logger.Logger) (*FileRenderer, error) {
	var (
		tmpl *template.Template
		err  error
	)

	if templateFile != "" {
		tmpl, err = template.ParseFiles(templateFile)
	} else {
		tmpl, err = template.ParseFS(defaultTemplate, "templates/haproxy.cfg.tmpl")
	}
	if err != nil {
		return nil, syncerrors.NewRenderError(err)
	}

	return &FileRenderer{
		template:        tmpl,
		destinationPath: destinationPath,
		logger:          log.RendererLogger(destinationPath),
	}, nil
}

// RenderAndWrite renders the snapshot and atomically replaces the
// destination file. Output is deterministic for a given snapshot:
// services and backends are sorted by name and the template carries no
// timestamps, so repeated calls produce byte-identical files.
//
// The rendered bytes go to a temp file in the destination directory
// first, then rename into place, so the haproxy process can never
// observe a half-written configuration.
func (r *FileRenderer) RenderAndWrite(snapshot topology.Snapshot) error {
	data := TemplateData{
		Services: make([]ServiceView, 0, len(snapshot)),
	}
	for _, name := range snapshot.ServiceNames() {
		svc := snapshot[name]
		data.Services = append(data.Services, ServiceView{
			Name:     name,
			Port:     svc.Port,
			Backends: svc.SortedEndpoints(),
		})
	}

	var buf bytes.Buffer
	if err := r.template.Execute(&buf, data); err != nil {
		return syncerrors.NewRenderError(err)
	}

	if err := r.writeAtomic(buf.Bytes()); err != nil {
		return syncerrors.NewConfigWriteError(r.destinationPath, err)
	}

	r.logger.WithField("bytes", buf.Len()).Debug("Wrote configuration file")
	return nil
}

// writeAtomic writes data to a temp file next to the destination and
// renames it into place. The 0644 mode keeps the file readable by the
// haproxy process, which runs under its own user.
func (r *FileRenderer) writeAtomic(data []byte) error {
	dir := filepath.Dir(r.destinationPath)

	tmp, err := os.CreateTemp(dir, filepath.Base(r.destinationPath)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, r.destinationPath); err != nil {
		os.Remove(tmpName)
		return err
	}

	return nil
}
