package api

import (
	"embed"
	"html/template"
	"io"
	"strings"
	"time"

	"node-pulse/pkg/model"
)

//go:embed templates/index.html
var templateFS embed.FS

type serviceView struct {
	Name    string
	Status  string
	Class   string
	Details string
}

type nodeView struct {
	Name      string
	IP        string
	Status    string
	Class     string
	CheckedAt string
	Services  []serviceView
}

type pageData struct {
	Nodes       []nodeView
	Counts      map[string]int
	GeneratedAt string
}

type page struct {
	tmpl *template.Template
}

func newPage() (*page, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &page{tmpl: tmpl}, nil
}

func statusClass(s model.Status) string {
	return "status-" + strings.ToLower(s.String())
}

func (p *page) render(w io.Writer, snaps []model.NodeSnapshot, now time.Time) error {
	data := pageData{
		Nodes:       make([]nodeView, 0, len(snaps)),
		Counts:      map[string]int{"OK": 0, "WARN": 0, "FAIL": 0},
		GeneratedAt: model.FormatTimestamp(now),
	}
	for _, s := range snaps {
		v := nodeView{
			Name:      s.Node.Name,
			IP:        s.Node.Address,
			Status:    s.OverallStatus.String(),
			Class:     statusClass(s.OverallStatus),
			CheckedAt: model.FormatTimestamp(s.CheckedAt),
		}
		for _, r := range s.Services {
			v.Services = append(v.Services, serviceView{
				Name:    string(r.Name),
				Status:  r.Status.String(),
				Class:   statusClass(r.Status),
				Details: r.Details,
			})
		}
		data.Counts[v.Status]++
		data.Nodes = append(data.Nodes, v)
	}
	return p.tmpl.Execute(w, data)
}
