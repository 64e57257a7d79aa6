package schemadoc

import (
	"strings"
	"time"

	"github.com/roach88/mirror/internal/model"
)

type parseState int

const (
	stateTopLevel parseState = iota
	stateInList
	stateInListItem
	stateInNestedObject
)

// parser is a line-driven state machine. Each state remembers the indent
// that opened it; a line at or left of that indent closes the state.
type parser struct {
	state parseState

	top   map[string]any
	lists map[string][]map[string]any

	listKey    string
	listIndent int

	item       map[string]any
	itemIndent int

	nested       map[string]any
	nestedKey    string
	nestedIndent int
}

// Parse reads a schema document. It never fails: input that does not yield
// a document id returns ok == false.
func Parse(text string) (model.SchemaDocument, bool) {
	p := &parser{
		top:   make(map[string]any),
		lists: make(map[string][]map[string]any),
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t\r")
		content := strings.TrimLeft(line, " \t")
		if content == "" || strings.HasPrefix(content, "#") {
			continue
		}
		p.feed(len(line)-len(content), content)
	}
	p.finish()

	doc := p.document()
	if doc.ID == "" {
		return model.SchemaDocument{}, false
	}
	return doc, true
}

func (p *parser) feed(indent int, content string) {
	for {
		switch p.state {
		case stateInNestedObject:
			if indent > p.nestedIndent {
				p.setField(p.nested, content)
				return
			}
			p.closeNested()

		case stateInListItem:
			if indent <= p.listIndent {
				p.closeItem()
				p.closeList()
				continue
			}
			if isListMarker(content) && indent < p.itemIndent {
				p.closeItem()
				continue
			}
			p.itemField(indent, content)
			return

		case stateInList:
			if indent <= p.listIndent {
				p.closeList()
				continue
			}
			if isListMarker(content) {
				p.openItem(indent, content)
			}
			return

		default:
			p.topField(indent, content)
			return
		}
	}
}

func (p *parser) topField(indent int, content string) {
	key, raw, ok := splitKeyValue(content)
	if !ok {
		return
	}
	switch raw {
	case "":
		p.listKey = key
		p.listIndent = indent
		p.lists[key] = nil
		p.state = stateInList
	case "[]":
		p.lists[key] = nil
	default:
		p.top[key] = decodeValue(raw)
	}
}

func (p *parser) openItem(indent int, content string) {
	rest := strings.TrimLeft(content[1:], " ")
	p.item = make(map[string]any)
	p.itemIndent = indent + len(content) - len(rest)
	if rest == "" {
		p.itemIndent = indent + 2
	}
	p.state = stateInListItem
	if rest != "" {
		p.itemField(p.itemIndent, rest)
	}
}

func (p *parser) itemField(indent int, content string) {
	key, raw, ok := splitKeyValue(content)
	if !ok {
		return
	}
	if raw == "" {
		p.nestedKey = key
		p.nestedIndent = indent
		p.nested = make(map[string]any)
		p.state = stateInNestedObject
		return
	}
	p.item[key] = decodeValue(raw)
}

func (p *parser) setField(m map[string]any, content string) {
	key, raw, ok := splitKeyValue(content)
	if !ok {
		return
	}
	m[key] = decodeValue(raw)
}

func (p *parser) closeNested() {
	p.item[p.nestedKey] = p.nested
	p.nested = nil
	p.state = stateInListItem
}

func (p *parser) closeItem() {
	p.lists[p.listKey] = append(p.lists[p.listKey], p.item)
	p.item = nil
	p.state = stateInList
}

func (p *parser) closeList() {
	p.state = stateTopLevel
}

func (p *parser) finish() {
	if p.state == stateInNestedObject {
		p.closeNested()
	}
	if p.state == stateInListItem {
		p.closeItem()
	}
	if p.state == stateInList {
		p.closeList()
	}
}

func (p *parser) document() model.SchemaDocument {
	doc := model.SchemaDocument{
		ID:             asString(p.top["id"]),
		Title:          asString(p.top["title"]),
		CollectionID:   asString(p.top["collectionId"]),
		CollectionSlug: asString(p.top["collectionSlug"]),
		Slug:           asString(p.top["slug"]),
		LocalHash:      asString(p.top["localHash"]),
		RemoteHash:     asString(p.top["remoteHash"]),
	}
	if s := asString(p.top["updatedAt"]); s != "" {
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			doc.UpdatedAt = ts.UTC()
		}
	}

	for _, item := range p.lists["dataSources"] {
		doc.DataSources = append(doc.DataSources, model.DataSourceDescriptor{
			ID:        asString(item["id"]),
			Name:      asString(item["name"]),
			SortOrder: asInt(item["sortOrder"]),
		})
	}
	for _, item := range p.lists["properties"] {
		doc.Properties = append(doc.Properties, model.PropertyDescriptor{
			ID:           asString(item["id"]),
			Name:         asString(item["name"]),
			Type:         model.PropertyType(asString(item["type"])),
			DataSourceID: asString(item["dataSourceId"]),
			SortOrder:    asInt(item["sortOrder"]),
			Config:       asConfig(item["config"]),
		})
	}
	return doc
}

func isListMarker(content string) bool {
	return content == "-" || strings.HasPrefix(content, "- ")
}
