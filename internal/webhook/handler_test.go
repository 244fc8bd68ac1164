package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
)

func computeHMAC(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := []byte("hook-secret-xyz")
	payload := []byte(`{"action":"synchronize"}`)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    []byte
		wantErr   bool
	}{
		{
			name:      "valid signature",
			payload:   payload,
			signature: computeHMAC(payload, secret),
			secret:    secret,
			wantErr:   false,
		},
		{
			name:      "wrong secret",
			payload:   payload,
			signature: computeHMAC(payload, []byte("other-secret")),
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "tampered payload",
			payload:   []byte(`{"action":"closed"}`),
			signature: computeHMAC(payload, secret),
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "missing sha256= prefix",
			payload:   payload,
			signature: "deadbeef",
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "invalid hex after prefix",
			payload:   payload,
			signature: "sha256=not-hex!",
			secret:    secret,
			wantErr:   true,
		},
		{
			name:      "empty signature",
			payload:   payload,
			signature: "",
			secret:    secret,
			wantErr:   true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifySignature(tc.payload, tc.signature, tc.secret)
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseEventPush(t *testing.T) {
	payload := PushEvent{
		Ref:   "refs/heads/main",
		After: "4f5a6b7c8d9e",
		Repository: GitHubRepository{
			ID:            310,
			FullName:      "acme/billing-py",
			DefaultBranch: "main",
		},
		Installation: InstallationPayload{ID: 8801},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	event, err := ParseEvent("push", data)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}

	push, ok := event.(*PushEvent)
	if !ok {
		t.Fatalf("expected *PushEvent, got %T", event)
	}
	if push.Repository.FullName != "acme/billing-py" {
		t.Errorf("repo = %q, want acme/billing-py", push.Repository.FullName)
	}
	if push.After != "4f5a6b7c8d9e" {
		t.Errorf("after = %q, want 4f5a6b7c8d9e", push.After)
	}
	if push.Installation.ID != 8801 {
		t.Errorf("installation = %d, want 8801", push.Installation.ID)
	}
}

func TestParseEventPullRequest(t *testing.T) {
	tests := []struct {
		name       string
		payload    PullRequestEvent
		wantRepo   string
		wantNumber int
		wantSHA    string
		wantBase   string
	}{
		{
			name: "PR opened",
			payload: PullRequestEvent{
				Action: "opened",
				Number: 17,
				PullRequest: PullRequestPayload{
					Number: 17,
					Head:   GitRef{SHA: "feat-head-sha", Ref: "feat/invoice-export"},
					Base:   GitRef{SHA: "main-sha", Ref: "main"},
					State:  "open",
				},
				Repository: GitHubRepository{
					ID:            310,
					FullName:      "acme/billing-py",
					DefaultBranch: "main",
				},
				Installation: InstallationPayload{ID: 8801},
			},
			wantRepo:   "acme/billing-py",
			wantNumber: 17,
			wantSHA:    "feat-head-sha",
			wantBase:   "main",
		},
		{
			name: "PR synchronize against develop",
			payload: PullRequestEvent{
				Action: "synchronize",
				Number: 204,
				PullRequest: PullRequestPayload{
					Number: 204,
					Head:   GitRef{SHA: "fix-head-sha", Ref: "fix/rounding"},
					Base:   GitRef{SHA: "develop-sha", Ref: "develop"},
					State:  "open",
				},
				Repository: GitHubRepository{
					ID:            311,
					FullName:      "acme/ledger",
					DefaultBranch: "develop",
				},
				Installation: InstallationPayload{ID: 8801},
			},
			wantRepo:   "acme/ledger",
			wantNumber: 204,
			wantSHA:    "fix-head-sha",
			wantBase:   "develop",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.payload)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			event, err := ParseEvent("pull_request", data)
			if err != nil {
				t.Fatalf("ParseEvent: %v", err)
			}

			pr, ok := event.(*PullRequestEvent)
			if !ok {
				t.Fatalf("expected *PullRequestEvent, got %T", event)
			}

			if pr.Repository.FullName != tc.wantRepo {
				t.Errorf("repo = %q, want %q", pr.Repository.FullName, tc.wantRepo)
			}
			if pr.Number != tc.wantNumber {
				t.Errorf("number = %d, want %d", pr.Number, tc.wantNumber)
			}
			if pr.PullRequest.Head.SHA != tc.wantSHA {
				t.Errorf("head SHA = %q, want %q", pr.PullRequest.Head.SHA, tc.wantSHA)
			}
			if pr.PullRequest.Base.Ref != tc.wantBase {
				t.Errorf("base ref = %q, want %q", pr.PullRequest.Base.Ref, tc.wantBase)
			}
		})
	}
}

func TestParseEventInstallation(t *testing.T) {
	payload := InstallationEvent{
		Action: "created",
		Installation: InstallationPayload{
			ID:      8801,
			Account: GitHubUser{ID: 42, Login: "acme"},
		},
		Sender: GitHubUser{ID: 7, Login: "release-bot"},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	event, err := ParseEvent("installation", data)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}

	inst, ok := event.(*InstallationEvent)
	if !ok {
		t.Fatalf("expected *InstallationEvent, got %T", event)
	}
	if inst.Installation.ID != 8801 {
		t.Errorf("installation ID = %d, want 8801", inst.Installation.ID)
	}
	if inst.Installation.Account.Login != "acme" {
		t.Errorf("account = %q, want acme", inst.Installation.Account.Login)
	}
}

func TestParseEventUnsupportedType(t *testing.T) {
	_, err := ParseEvent("workflow_run", []byte(`{}`))
	if err == nil {
		t.Error("expected error for unsupported event type, got nil")
	}
}

func TestParseEventInvalidJSON(t *testing.T) {
	types := []string{"push", "pull_request", "installation", "installation_repositories"}
	for _, eventType := range types {
		t.Run(eventType, func(t *testing.T) {
			_, err := ParseEvent(eventType, []byte(`{broken`))
			if err == nil {
				t.Errorf("expected error parsing invalid JSON for %s, got nil", eventType)
			}
		})
	}
}

func TestDefaultBranchRefFilter(t *testing.T) {
	// handlePush only acts on pushes to the repo's default branch.
	tests := []struct {
		name          string
		ref           string
		defaultBranch string
		shouldProcess bool
	}{
		{"push to main", "refs/heads/main", "main", true},
		{"push to feature branch", "refs/heads/feat/selector", "main", false},
		{"push to tag", "refs/tags/v2.1.0", "main", false},
		{"push to develop when default", "refs/heads/develop", "develop", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			isDefault := tc.ref == "refs/heads/"+tc.defaultBranch
			if isDefault != tc.shouldProcess {
				t.Errorf("ref=%q defaultBranch=%q: isDefault=%v, want %v",
					tc.ref, tc.defaultBranch, isDefault, tc.shouldProcess)
			}
		})
	}
}
