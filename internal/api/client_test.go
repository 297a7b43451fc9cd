package api

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// fakeMessages records requests and returns a canned response.
type fakeMessages struct {
	resp *anthropic.Message
	err  error
	reqs []anthropic.MessageNewParams
}

func (f *fakeMessages) New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	f.reqs = append(f.reqs, body)
	return f.resp, f.err
}

func textMessage(text string, in, out int64) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{{Type: "text", Text: text}},
		Usage:   anthropic.Usage{InputTokens: in, OutputTokens: out},
	}
}

func TestNewClient_WithAPIKey(t *testing.T) {
	cfg := ClientConfig{
		APIKey: "test-key-123",
		Model:  anthropic.ModelClaudeSonnet4_20250514,
	}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if client.Model() != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("Model = %q, want %q", client.Model(), anthropic.ModelClaudeSonnet4_20250514)
	}

	if client.Tracker() == nil {
		t.Error("Tracker should not be nil")
	}
}

func TestNewClient_WithEnvVar(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-test-key")

	client, err := NewClient(ClientConfig{})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Model() != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("default Model = %q", client.Model())
	}
}

func TestNewClient_NoAPIKey(t *testing.T) {
	original, had := os.LookupEnv("ANTHROPIC_API_KEY")
	os.Unsetenv("ANTHROPIC_API_KEY")
	defer func() {
		if had {
			os.Setenv("ANTHROPIC_API_KEY", original)
		}
	}()

	_, err := NewClient(ClientConfig{})
	if err == nil {
		t.Fatal("NewClient should fail without API key")
	}

	expected := "ANTHROPIC_API_KEY environment variable is not set"
	if err.Error() != expected {
		t.Errorf("Error = %q, want %q", err.Error(), expected)
	}
}

func TestGenerate(t *testing.T) {
	fake := &fakeMessages{resp: textMessage("export const a = 1;", 1200, 300)}
	client := newClient(fake, anthropic.ModelClaudeSonnet4_20250514, ClientConfig{MaxTokens: 4096})

	proposer := models.ProposerProfile{
		Name:              "claude-3-5-haiku-20241022",
		InputCostPerUnit:  0.8 / 1e6,
		OutputCostPerUnit: 4.0 / 1e6,
	}

	content, in, out, err := client.Generate(context.Background(), "write a", proposer)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if content != "export const a = 1;" || in != 1200 || out != 300 {
		t.Errorf("Generate() = (%q, %d, %d)", content, in, out)
	}

	if len(fake.reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(fake.reqs))
	}
	req := fake.reqs[0]
	if req.Model != anthropic.Model("claude-3-5-haiku-20241022") {
		t.Errorf("Model = %q", req.Model)
	}
	if req.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", req.MaxTokens)
	}

	wantCost := 1200*0.8/1e6 + 300*4.0/1e6
	if got := client.Tracker().Cost(); got < wantCost-1e-12 || got > wantCost+1e-12 {
		t.Errorf("Cost = %v, want %v", got, wantCost)
	}
	if client.Tracker().Calls() != 1 {
		t.Errorf("Calls = %d, want 1", client.Tracker().Calls())
	}
}

func TestGenerate_DefaultModel(t *testing.T) {
	fake := &fakeMessages{resp: textMessage("ok", 1, 1)}
	client := newClient(fake, anthropic.ModelClaudeSonnet4_20250514, ClientConfig{})

	if _, _, _, err := client.Generate(context.Background(), "p", models.ProposerProfile{}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if fake.reqs[0].Model != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("Model = %q", fake.reqs[0].Model)
	}
	if fake.reqs[0].MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", fake.reqs[0].MaxTokens, DefaultMaxTokens)
	}
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeMessages
		want error
	}{
		{"provider error", &fakeMessages{err: context.DeadlineExceeded}, context.DeadlineExceeded},
		{"empty response", &fakeMessages{resp: &anthropic.Message{}}, ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(tt.fake, anthropic.ModelClaudeSonnet4_20250514, ClientConfig{})
			_, _, _, err := client.Generate(context.Background(), "p", models.ProposerProfile{Name: "x"})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerate_BedrockTranslation(t *testing.T) {
	fake := &fakeMessages{resp: textMessage("ok", 1, 1)}
	client := newClient(fake, anthropic.ModelClaudeSonnet4_20250514, ClientConfig{})
	client.bedrock = true

	proposer := models.ProposerProfile{Name: string(anthropic.ModelClaudeOpus4_5_20251101)}
	if _, _, _, err := client.Generate(context.Background(), "p", proposer); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got := fake.reqs[0].Model; got != "us.anthropic.claude-opus-4-5-20251101-v1:0" {
		t.Errorf("Model = %q", got)
	}
}

func TestGenerate_EmptyResponseReportsUsage(t *testing.T) {
	fake := &fakeMessages{resp: textMessage("", 42, 3)}
	client := newClient(fake, anthropic.ModelClaudeSonnet4_20250514, ClientConfig{})

	_, in, out, err := client.Generate(context.Background(), "p", models.ProposerProfile{Name: "p"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
	if in != 42 || out != 3 {
		t.Errorf("usage = %d/%d, want 42/3 so the call can be billed", in, out)
	}
}

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50, 0.01)
	tracker.Add(200, 100, 0.02)

	input, output := tracker.Total()
	if input != 300 || output != 150 {
		t.Errorf("Total = (%d, %d), want (300, 150)", input, output)
	}
	if tracker.Calls() != 2 {
		t.Errorf("Calls = %d, want 2", tracker.Calls())
	}
	if c := tracker.Cost(); c < 0.03-1e-9 || c > 0.03+1e-9 {
		t.Errorf("Cost = %v, want 0.03", c)
	}

	tracker.Reset()
	input, output = tracker.Total()
	if input != 0 || output != 0 || tracker.Calls() != 0 || tracker.Cost() != 0 {
		t.Error("Reset did not clear usage")
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	tests := []struct {
		in   anthropic.Model
		want anthropic.Model
	}{
		{anthropic.ModelClaudeSonnet4_20250514, "us.anthropic.claude-sonnet-4-20250514-v1:0"},
		{anthropic.ModelClaude3_5Haiku20241022, "us.anthropic.claude-3-5-haiku-20241022-v1:0"},
		{"custom-model", "custom-model"},
	}
	for _, tt := range tests {
		if got := translateModelForBedrock(tt.in); got != tt.want {
			t.Errorf("translateModelForBedrock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewClient_Bedrock(t *testing.T) {
	if os.Getenv("AWS_REGION") == "" && os.Getenv("AWS_DEFAULT_REGION") == "" {
		t.Skip("AWS_REGION not set, skipping Bedrock test")
	}

	client, err := NewClient(ClientConfig{
		UseAWSBedrock: true,
		AWSRegion:     "us-west-2",
	})
	if err != nil {
		t.Fatalf("NewClient with Bedrock failed: %v", err)
	}
	if got := client.TranslateModel(anthropic.ModelClaudeSonnet4_20250514); got != "us.anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("TranslateModel = %q", got)
	}
}
