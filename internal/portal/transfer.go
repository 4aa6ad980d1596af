package portal

import (
	"context"
	"path"
	"strings"

	"github.com/totegamma/diamond-portal"
)

const fallbackDirectory = "/~/"

// Pane is one side of the transfer view: a collection and a directory in it.
type Pane struct {
	lister   FileLister
	Endpoint diamond.Endpoint
	Path     string
	Entries  []diamond.FileEntry
}

func NewPane(lister FileLister) *Pane {
	return &Pane{lister: lister}
}

// Open selects a collection and lists its default directory.
func (p *Pane) Open(ctx context.Context, ep diamond.Endpoint) error {
	p.Endpoint = ep
	start := ep.DefaultDirectory()
	if start == "" {
		start = fallbackDirectory
	}
	return p.Navigate(ctx, start)
}

func (p *Pane) Navigate(ctx context.Context, dir string) error {
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}

	entries, err := p.lister.ListFiles(ctx, p.Endpoint.ID(), dir)
	if err != nil {
		return err
	}

	p.Path = dir
	p.Entries = entries
	return nil
}

// Enter descends into a directory entry. Other entries are ignored.
func (p *Pane) Enter(ctx context.Context, entry diamond.FileEntry) error {
	if entry.Type != "dir" {
		return nil
	}
	return p.Navigate(ctx, p.Path+entry.Name+"/")
}

func (p *Pane) Up(ctx context.Context) error {
	trimmed := strings.TrimSuffix(p.Path, "/")
	if trimmed == "" {
		return nil
	}
	parent := path.Dir(trimmed)
	if parent == "." {
		parent = "/"
	}
	return p.Navigate(ctx, parent)
}

// URLs returns the view and download URLs of entry in the current directory.
func (p *Pane) URLs(entry diamond.FileEntry) (string, string) {
	return diamond.AssetURLs(p.Endpoint, entry, p.Path)
}
