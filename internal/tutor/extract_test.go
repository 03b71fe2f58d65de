package tutor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create docx entry: %v", err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`
	if _, err := w.Write([]byte(doc)); err != nil {
		t.Fatalf("write docx entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close docx: %v", err)
	}
	return buf.Bytes()
}

func TestExtractText(t *testing.T) {
	text, err := Extract("notes.TXT", []byte("  Invoice total: 1,000 naira \n"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "Invoice total: 1,000 naira" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractDOCX(t *testing.T) {
	data := buildDOCX(t,
		`<w:p><w:r><w:t>VAT</w:t></w:r><w:r><w:t xml:space="preserve"> return</w:t></w:r></w:p>`+
			`<w:p><w:r><w:t>Due</w:t><w:tab/><w:t>21st</w:t></w:r></w:p>`)

	text, err := Extract("return.docx", data)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "VAT return\nDue\t21st" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractDOCXWithoutBody(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("word/styles.xml"); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	if _, err := Extract("empty.docx", buf.Bytes()); err == nil {
		t.Fatal("expected error for docx without body")
	}
}

func TestExtractInvalidPDF(t *testing.T) {
	if _, err := Extract("scan.pdf", []byte("not a pdf")); err == nil {
		t.Fatal("expected error for invalid pdf")
	}
}

func TestExtractUnsupported(t *testing.T) {
	_, err := Extract("sheet.xlsx", []byte("data"))
	if !errors.Is(err, ErrUnsupportedDocument) {
		t.Fatalf("expected ErrUnsupportedDocument, got %v", err)
	}
}

func TestAnalyzeUsesGivenTopic(t *testing.T) {
	client := &mockLLMClient{responses: []string{"The invoice omits VAT."}}
	a := NewAnalyzer("openai/gpt-4o-mini", staticFactory(t, client), nil)

	got, err := a.Analyze(context.Background(), "invoice.txt", []byte("Invoice 42, total 1000"), "VAT")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if got.Topic != "VAT" || got.Transcript != "The invoice omits VAT." {
		t.Fatalf("unexpected analysis %+v", got)
	}
	if !strings.Contains(client.lastMessages[0].Content, "relevant to the topic: VAT.") {
		t.Fatalf("unexpected system prompt %q", client.lastMessages[0].Content)
	}
	if client.lastMessages[1].Content != "Here is the document text:\n\nInvoice 42, total 1000" {
		t.Fatalf("unexpected user message %q", client.lastMessages[1].Content)
	}
}

func TestAnalyzeRoutesMissingTopic(t *testing.T) {
	client := &mockLLMClient{responses: []string{"CIT", "Company income tax is due."}}
	factory := staticFactory(t, client)
	router := NewTopicRouter("openai/gpt-4o-mini", factory, []string{"VAT", "CIT"}, "VAT")
	a := NewAnalyzer("openai/gpt-4o-mini", factory, router)

	got, err := a.Analyze(context.Background(), "accounts.txt", []byte("Annual accounts of Acme Ltd"), "")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if got.Topic != "CIT" {
		t.Fatalf("expected routed topic CIT, got %q", got.Topic)
	}
	if client.calls != 2 {
		t.Fatalf("expected router and analysis calls, got %d", client.calls)
	}
}

func TestAnalyzeRequiresTopicWithoutRouter(t *testing.T) {
	a := NewAnalyzer("openai/gpt-4o-mini", staticFactory(t, &mockLLMClient{}), nil)

	_, err := a.Analyze(context.Background(), "a.txt", []byte("text"), "")
	if !errors.Is(err, ErrTopicRequired) {
		t.Fatalf("expected ErrTopicRequired, got %v", err)
	}
}

func TestAnalyzeEmptyDocument(t *testing.T) {
	a := NewAnalyzer("openai/gpt-4o-mini", staticFactory(t, &mockLLMClient{}), nil)

	if _, err := a.Analyze(context.Background(), "a.txt", []byte("   "), "VAT"); err == nil {
		t.Fatal("expected error for empty document")
	}
}
