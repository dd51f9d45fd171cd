package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/reflexhq/reflex/pkg/skill"
)

func newTestRegistry(t *testing.T, names ...string) *skill.Registry {
	t.Helper()
	reg := skill.NewRegistry()
	for _, name := range names {
		n := name
		err := reg.Register(skill.Definition{Name: n, Description: n}, func(ctx context.Context, input any) (any, error) {
			return "ran " + n, nil
		})
		if err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}
	return reg
}

func TestBaseInvokeSkillAuthorized(t *testing.T) {
	reg := newTestRegistry(t, "mock-skill")
	base := NewBase(Config{Name: "worker", Description: "test agent", Skills: []string{"mock-skill"}}, reg)

	out, err := base.InvokeSkill(context.Background(), "mock-skill", nil)
	if err != nil {
		t.Fatalf("InvokeSkill: %v", err)
	}
	if out != "ran mock-skill" {
		t.Fatalf("output = %v", out)
	}
}

func TestBaseInvokeSkillUnauthorized(t *testing.T) {
	reg := newTestRegistry(t, "mock-skill", "code-review")
	base := NewBase(Config{Name: "worker", Description: "test agent", Skills: []string{"mock-skill"}}, reg)

	_, err := base.InvokeSkill(context.Background(), "code-review", nil)
	if err == nil {
		t.Fatal("expected authorization error")
	}
	var authErr *AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("error type = %T", err)
	}
	if !strings.Contains(err.Error(), "not authorized") {
		t.Fatalf("message = %q", err.Error())
	}
	if authErr.Agent != "worker" || authErr.Skill != "code-review" {
		t.Fatalf("fields = %q/%q", authErr.Agent, authErr.Skill)
	}
}

func TestBaseInvokeSkillDeclaredButMissing(t *testing.T) {
	reg := newTestRegistry(t) // empty registry
	base := NewBase(Config{Name: "worker", Description: "test agent", Skills: []string{"ghost"}}, reg)

	_, err := base.InvokeSkill(context.Background(), "ghost", nil)
	if err == nil {
		t.Fatal("expected skill-not-found error")
	}
	var nfe *SkillNotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("error type = %T", err)
	}
	if nfe.Skill != "ghost" {
		t.Fatalf("skill = %q", nfe.Skill)
	}
}

func TestBaseInvokeSkillNilRegistry(t *testing.T) {
	base := NewBase(Config{Name: "worker", Description: "test agent", Skills: []string{"mock-skill"}}, nil)

	_, err := base.InvokeSkill(context.Background(), "mock-skill", nil)
	var nfe *SkillNotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("error = %v", err)
	}
}

func TestValidateSkills(t *testing.T) {
	reg := newTestRegistry(t, "present")
	base := NewBase(Config{Name: "worker", Description: "test agent", Skills: []string{"present", "absent"}}, reg)

	missing := base.ValidateSkills()
	if len(missing) != 1 || missing[0] != "absent" {
		t.Fatalf("missing = %v", missing)
	}
}

func TestResultBuilders(t *testing.T) {
	ok := Success("done", WithNextAgent("reviewer"), WithArtifacts(Artifact{Type: "file", Name: "report", Content: "out/report.md"}))
	if !ok.Success {
		t.Fatal("Success builder produced failed result")
	}
	if ok.SuggestedNextAgent != "reviewer" {
		t.Fatalf("next agent = %q", ok.SuggestedNextAgent)
	}
	if len(ok.Artifacts) != 1 || ok.Artifacts[0].Name != "report" {
		t.Fatalf("artifacts = %v", ok.Artifacts)
	}

	carried := Success("done", WithNextAgent("reviewer", map[string]any{"diff": "abc123"}))
	if carried.SuggestedNextAgent != "reviewer" {
		t.Fatalf("next agent = %q", carried.SuggestedNextAgent)
	}
	if hc, ok2 := carried.HandoffContext.(map[string]any); !ok2 || hc["diff"] != "abc123" {
		t.Fatalf("handoff context = %v", carried.HandoffContext)
	}
	if ok.HandoffContext != nil {
		t.Fatalf("context-less suggestion should leave handoff context nil, got %v", ok.HandoffContext)
	}

	bad := Failure("boom")
	if bad.Success {
		t.Fatal("Failure builder produced succeeded result")
	}
	m, ok2 := bad.Output.(map[string]any)
	if !ok2 || m["error"] != "boom" {
		t.Fatalf("failure output = %v", bad.Output)
	}

	explicit := Failure("boom", map[string]any{"code": 7})
	if explicit.Output.(map[string]any)["code"] != 7 {
		t.Fatalf("explicit output = %v", explicit.Output)
	}
}

func TestHandoffObservers(t *testing.T) {
	base := NewBase(Config{Name: "worker", Description: "test agent"}, nil)

	var seenFrom string
	var seenReq HandoffRequest
	base.OnHandoff(func(from string, req HandoffRequest) {
		seenFrom = from
		seenReq = req
	})

	base.RequestHandoff(HandoffRequest{TargetAgent: "reviewer", Reason: "needs review"})
	if seenFrom != "worker" {
		t.Fatalf("from = %q", seenFrom)
	}
	if seenReq.TargetAgent != "reviewer" || seenReq.Reason != "needs review" {
		t.Fatalf("req = %+v", seenReq)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Description: "d"}).Validate(); err == nil {
		t.Fatal("expected missing-name error")
	}
	if err := (Config{Name: "n"}).Validate(); err == nil {
		t.Fatal("expected missing-description error")
	}
	if err := (Config{Name: "n", Description: "d"}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestFuncAgentExecute(t *testing.T) {
	reg := newTestRegistry(t, "mock-skill")
	ag, err := NewFuncAgent(Config{Name: "fn", Description: "func agent", Skills: []string{"mock-skill"}}, reg,
		func(ctx context.Context, base *Base, ac Context) (Result, error) {
			out, err := base.InvokeSkill(ctx, "mock-skill", ac.Task)
			if err != nil {
				return base.Failure(err.Error()), nil
			}
			return base.Success(out), nil
		})
	if err != nil {
		t.Fatalf("NewFuncAgent: %v", err)
	}

	res, err := ag.Execute(context.Background(), Context{Task: "do it", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success || res.Output != "ran mock-skill" {
		t.Fatalf("result = %+v", res)
	}
}

func TestFuncAgentRejectsNilExecute(t *testing.T) {
	if _, err := NewFuncAgent(Config{Name: "fn", Description: "d"}, nil, nil); err == nil {
		t.Fatal("expected error for nil execute")
	}
}
