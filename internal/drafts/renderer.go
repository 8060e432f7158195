// Package drafts renders outreach email drafts from Liquid templates
// bound to snapshot membership rows. Rendering reads only captured
// attributes, never live contact data, so a draft is reproducible for a
// given {segment, version} pair.
package drafts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/outreach-engine/internal/snapshot"
)

// Renderer compiles and renders Liquid draft templates with caching.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// Draft is one rendered email draft for a snapshot member.
type Draft struct {
	ContactID string `json:"contact_id"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// NewRenderer creates a draft renderer with the domain filters registered.
func NewRenderer() *Renderer {
	r := &Renderer{engine: liquid.NewEngine()}

	// {{ first_name | default: "there" }}
	r.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ position | capitalize }}
	r.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	return r
}

// Parse compiles a template string and returns any syntax errors.
func (r *Renderer) Parse(templateStr string) error {
	_, err := r.engine.ParseString(templateStr)
	return err
}

// RenderMember renders subject and body templates against one snapshot
// row's captured attributes.
func (r *Renderer) RenderMember(subjectTpl, bodyTpl string, member snapshot.MemberRow) (*Draft, error) {
	bindings := map[string]interface{}{
		"contact_id":      member.ContactID.String(),
		"segment_version": member.SegmentVersion,
	}
	for k, v := range member.CapturedAttributes {
		bindings[k] = v
	}

	subject, err := r.render("subject:"+subjectTpl, subjectTpl, bindings)
	if err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}
	body, err := r.render("body:"+bodyTpl, bodyTpl, bindings)
	if err != nil {
		return nil, fmt.Errorf("render body: %w", err)
	}

	return &Draft{
		ContactID: member.ContactID.String(),
		Subject:   subject,
		Body:      body,
	}, nil
}

// RenderAll renders drafts for every member of a snapshot version.
func (r *Renderer) RenderAll(subjectTpl, bodyTpl string, members []snapshot.MemberRow) ([]Draft, error) {
	out := make([]Draft, 0, len(members))
	for _, member := range members {
		draft, err := r.RenderMember(subjectTpl, bodyTpl, member)
		if err != nil {
			return nil, err
		}
		out = append(out, *draft)
	}
	return out, nil
}

func (r *Renderer) render(cacheKey, templateStr string, bindings map[string]interface{}) (string, error) {
	if cached, ok := r.cache.Load(cacheKey); ok {
		return cached.(*liquid.Template).RenderString(bindings)
	}
	tpl, err := r.engine.ParseString(templateStr)
	if err != nil {
		return "", err
	}
	r.cache.Store(cacheKey, tpl)
	return tpl.RenderString(bindings)
}
