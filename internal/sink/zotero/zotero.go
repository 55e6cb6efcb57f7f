// Package zotero writes field records as Zotero RDF/XML.
package zotero

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

// Defaults for the constant item fields.
const (
	DefaultLanguage = "es"
	DefaultArchive  = "Archivo del Libertador"
)

var namespaces = []struct{ prefix, uri string }{
	{"rdf", "http://www.w3.org/1999/02/22-rdf-syntax-ns#"},
	{"z", "http://www.zotero.org/namespaces/export#"},
	{"dcterms", "http://purl.org/dc/terms/"},
	{"dc", "http://purl.org/dc/elements/1.1/"},
	{"bib", "http://purl.org/net/biblio#"},
}

// Config holds the values every exported item shares. Empty values are
// omitted from the output.
type Config struct {
	Language string `mapstructure:"language"`
	Archive  string `mapstructure:"archive"`
	// SkipFailed leaves placeholder records of failed fetches out.
	SkipFailed bool `mapstructure:"skip_failed"`
}

// Encoder renders records as one rdf:RDF document.
type Encoder struct {
	cfg Config
}

// New returns an Encoder.
func New(cfg Config) *Encoder {
	return &Encoder{cfg: cfg}
}

// Encode writes records to w. Items are numbered from 1 in the order they
// are emitted; the number links a description to its content memo.
func (e *Encoder) Encode(w io.Writer, records []crawler.FieldRecord) (int, error) {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return 0, fmt.Errorf("write xml header: %w", err)
	}
	x := &writer{enc: xml.NewEncoder(w)}
	x.enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "rdf:RDF"}}
	for _, ns := range namespaces {
		root.Attr = append(root.Attr, attr("xmlns:"+ns.prefix, ns.uri))
	}
	x.start(root)

	n := 0
	for _, rec := range records {
		if rec.Failed() && e.cfg.SkipFailed {
			continue
		}
		n++
		e.item(x, rec, "#item_"+strconv.Itoa(n))
	}

	x.end("rdf:RDF")
	if x.err == nil {
		x.err = x.enc.Flush()
	}
	if x.err != nil {
		return 0, fmt.Errorf("encode rdf: %w", x.err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return 0, fmt.Errorf("write rdf: %w", err)
	}
	return n, nil
}

// WriteFile encodes records into path, replacing it.
func (e *Encoder) WriteFile(path string, records []crawler.FieldRecord) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	n, err := e.Encode(bw, records)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w", path, cerr)
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (e *Encoder) item(x *writer, rec crawler.FieldRecord, ref string) {
	desc := xml.StartElement{Name: xml.Name{Local: "rdf:Description"}}
	if rec.URL != "" {
		desc.Attr = []xml.Attr{attr("rdf:about", rec.URL)}
	}
	x.start(desc)
	x.text("z:itemType", "document")
	x.empty("dcterms:isReferencedBy", attr("rdf:resource", ref))
	x.text("dc:title", deref(rec.Title))
	for _, tag := range rec.KeywordTags() {
		x.text("dc:subject", tag)
	}
	x.text("dcterms:abstract", deref(rec.Notes))
	x.text("z:language", e.cfg.Language)
	x.text("z:archive", e.cfg.Archive)
	x.text("dc:coverage", deref(rec.Section))
	if rec.URL != "" {
		x.start(xml.StartElement{Name: xml.Name{Local: "dc:identifier"}})
		x.start(xml.StartElement{Name: xml.Name{Local: "dcterms:URI"}})
		x.text("rdf:value", rec.URL)
		x.end("dcterms:URI")
		x.end("dc:identifier")
	}
	x.text("dcterms:dateSubmitted", rec.FetchedAt)
	x.text("dc:description", placesAndPeople(rec))
	x.end("rdf:Description")

	if content := deref(rec.Content); content != "" {
		x.start(xml.StartElement{
			Name: xml.Name{Local: "bib:Memo"},
			Attr: []xml.Attr{attr("rdf:about", ref)},
		})
		x.text("rdf:value", memoHTML(content))
		x.end("bib:Memo")
	}
}

func placesAndPeople(rec crawler.FieldRecord) string {
	var b strings.Builder
	if places := deref(rec.Places); places != "" {
		b.WriteString("Lugar:\"" + places + "\"\n")
	}
	if persons := deref(rec.Persons); persons != "" {
		b.WriteString("Gente:" + persons)
	}
	return strings.TrimSpace(b.String())
}

func memoHTML(content string) string {
	return `<div data-schema-version="9"><p>` + strings.ReplaceAll(content, "\n", "<br>") + `</p></div>`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// writer keeps the first encoding error so element helpers stay chainable.
type writer struct {
	enc *xml.Encoder
	err error
}

func (x *writer) token(t xml.Token) {
	if x.err != nil {
		return
	}
	x.err = x.enc.EncodeToken(t)
}

func (x *writer) start(el xml.StartElement) {
	x.token(el)
}

func (x *writer) end(name string) {
	x.token(xml.EndElement{Name: xml.Name{Local: name}})
}

// text writes <name>value</name>, or nothing when value is empty.
func (x *writer) text(name, value string) {
	if value == "" {
		return
	}
	x.start(xml.StartElement{Name: xml.Name{Local: name}})
	x.token(xml.CharData(value))
	x.end(name)
}

func (x *writer) empty(name string, attrs ...xml.Attr) {
	x.start(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
	x.end(name)
}
