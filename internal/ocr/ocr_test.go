package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/lukasedel/docsorter/internal/inference"
)

type stubNative struct {
	text  string
	pages int
	err   error
}

func (s stubNative) FirstPagesText(context.Context, []byte, int) (string, int, error) {
	return s.text, s.pages, s.err
}

// stubRunner fakes pdftoppm (writing rendered pages) and tesseract.
type stubRunner struct {
	calls       [][]string
	renderPages int    // pngs produced per pdftoppm call
	renderErr   error
	ocrText     string // tesseract stdout
	ocrErr      error
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, append([]string{name}, args...))
	if strings.Contains(name, "pdftoppm") {
		if s.renderErr != nil {
			return nil, []byte("render boom"), s.renderErr
		}
		prefix := args[len(args)-1]
		for i := 1; i <= s.renderPages; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	}
	if s.ocrErr != nil {
		return nil, []byte("ocr boom"), s.ocrErr
	}
	return []byte(s.ocrText), nil, nil
}

type stubChat struct {
	reply string
	err   error
	reqs  []inference.Request
}

func (s *stubChat) Send(_ context.Context, req inference.Request) (string, error) {
	s.reqs = append(s.reqs, req)
	return s.reply, s.err
}

func newTestExtractor(native NativeTextReader, runner Runner, chat inference.ChatClient) *Extractor {
	e := NewExtractor(Config{OCRModel: "vision"}, chat, nil)
	e.native = native
	e.runner = runner
	return e
}

func TestExtractUsesNativeTextWhenSufficient(t *testing.T) {
	native := stubNative{text: strings.Repeat("a", 120), pages: 4}
	runner := &stubRunner{}
	e := newTestExtractor(native, runner, nil)

	res := e.Extract(context.Background(), []byte("pdf"))
	if res.Method != MethodNative {
		t.Fatalf("Method = %q, want %q", res.Method, MethodNative)
	}
	if res.Text != native.text {
		t.Fatalf("Text = %q, want native text", res.Text)
	}
	if len(runner.calls) != 0 {
		t.Fatalf("no external commands expected, got %v", runner.calls)
	}
}

func TestNeedsOCRThresholdIsExact(t *testing.T) {
	e := newTestExtractor(stubNative{}, &stubRunner{}, nil)

	e.native = stubNative{text: strings.Repeat("x", 50), pages: 1}
	if needs, _, _, _ := e.NeedsOCR(context.Background(), nil); needs {
		t.Fatal("50 native chars must skip OCR")
	}

	e.native = stubNative{text: strings.Repeat("x", 49), pages: 1}
	if needs, _, _, _ := e.NeedsOCR(context.Background(), nil); !needs {
		t.Fatal("49 native chars must require OCR")
	}

	// Whitespace does not count toward the threshold.
	e.native = stubNative{text: strings.Repeat(" ", 200), pages: 1}
	if needs, _, _, _ := e.NeedsOCR(context.Background(), nil); !needs {
		t.Fatal("whitespace-only text must require OCR")
	}
}

func TestExtractFallsBackToLocalOCR(t *testing.T) {
	runner := &stubRunner{renderPages: 2, ocrText: "GESCANNTER TEXT"}
	e := newTestExtractor(stubNative{text: "short", pages: 3}, runner, nil)

	res := e.Extract(context.Background(), []byte("pdf"))
	if res.Method != MethodLocalOCR {
		t.Fatalf("Method = %q, want %q", res.Method, MethodLocalOCR)
	}
	if want := "GESCANNTER TEXT\n\nGESCANNTER TEXT"; res.Text != want {
		t.Fatalf("Text = %q, want %q", res.Text, want)
	}

	// First call is pdftoppm with the local 2-page limit at 150 DPI.
	first := runner.calls[0]
	joined := strings.Join(first, " ")
	if !strings.Contains(joined, "-l 2") || !strings.Contains(joined, "-r 150") {
		t.Fatalf("unexpected pdftoppm args: %v", first)
	}
}

func TestExtractFallsBackToCloudOCR(t *testing.T) {
	runner := &stubRunner{renderPages: 3, ocrErr: errors.New("tesseract missing")}
	chat := &stubChat{reply: "Transkription der Police"}
	e := newTestExtractor(stubNative{text: "", pages: 3}, runner, chat)

	res := e.Extract(context.Background(), []byte("pdf"))
	if res.Method != MethodCloudOCR {
		t.Fatalf("Method = %q, want %q (warnings: %v)", res.Method, MethodCloudOCR, res.Warnings)
	}
	if res.Text != "Transkription der Police" {
		t.Fatalf("Text = %q", res.Text)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected the local failure recorded as a warning")
	}

	if len(chat.reqs) != 1 {
		t.Fatalf("cloud requests = %d, want 1", len(chat.reqs))
	}
	req := chat.reqs[0]
	if req.Model != "vision" {
		t.Fatalf("cloud model = %q", req.Model)
	}
	parts, ok := req.Messages[0].Content.([]inference.Part)
	if !ok {
		t.Fatalf("cloud message content is %T, want []inference.Part", req.Messages[0].Content)
	}
	images := 0
	for _, p := range parts {
		if p.Type == "image" {
			images++
			if !strings.HasPrefix(p.Data, "data:image/png;base64,") {
				t.Fatalf("image part is not a data URL: %q", p.Data[:32])
			}
		}
	}
	if images != 3 {
		t.Fatalf("image parts = %d, want 3", images)
	}
}

func TestExtractLocalUnavailableSkipsStraightToCloud(t *testing.T) {
	runner := &stubRunner{renderPages: 1}
	chat := &stubChat{reply: "cloud text"}
	e := newTestExtractor(stubNative{text: "", pages: 1}, runner, chat)
	e.LocalAvailable = false

	res := e.Extract(context.Background(), []byte("pdf"))
	if res.Method != MethodCloudOCR {
		t.Fatalf("Method = %q, want %q", res.Method, MethodCloudOCR)
	}
	// Only one rasterize call (the cloud one, 5-page limit).
	if len(runner.calls) != 1 {
		t.Fatalf("runner calls = %d, want 1", len(runner.calls))
	}
	if joined := strings.Join(runner.calls[0], " "); !strings.Contains(joined, "-l 5") {
		t.Fatalf("unexpected pdftoppm args: %v", runner.calls[0])
	}
}

func TestExtractDegradesToEmptyTextWhenEverythingFails(t *testing.T) {
	runner := &stubRunner{renderErr: errors.New("no poppler")}
	chat := &stubChat{err: errors.New("backend down")}
	e := newTestExtractor(stubNative{text: "", pages: 2, err: errors.New("broken xref")}, runner, chat)

	res := e.Extract(context.Background(), []byte("pdf"))
	if res.Method != MethodNone {
		t.Fatalf("Method = %q, want %q", res.Method, MethodNone)
	}
	if res.Text != "" {
		t.Fatalf("Text = %q, want empty", res.Text)
	}
	if len(res.Warnings) < 2 {
		t.Fatalf("Warnings = %v, want reasons from every failed step", res.Warnings)
	}
}
