package plan

import (
	"errors"
	"testing"

	"nvme-wipe-engine/internal/device"
)

func capsWith(crypto, secure, format bool) *device.Capabilities {
	return &device.Capabilities{
		NamespacePath:       "/dev/nvme0n1",
		NamespaceID:         1,
		SupportsCryptoErase: crypto,
		SupportsSecureErase: secure,
		SupportsFormat:      format,
	}
}

func TestBuildRanking(t *testing.T) {
	tests := []struct {
		name         string
		caps         *device.Capabilities
		wantPrimary  string
		wantFallback string
	}{
		{"crypto ranks first", capsWith(true, true, true), MethodCryptoErase, MethodSecureErase},
		{"secure erase without crypto", capsWith(false, true, true), MethodSecureErase, MethodFormat},
		{"crypto with plain format fallback", capsWith(true, false, true), MethodCryptoErase, MethodFormat},
		{"format only, no fallback", capsWith(false, false, true), MethodFormat, ""},
		{"crypto only, no fallback", capsWith(true, false, false), MethodCryptoErase, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Build(tt.caps)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}

			if got := p.Primary().Method; got != tt.wantPrimary {
				t.Errorf("Primary().Method = %q, want %q", got, tt.wantPrimary)
			}

			fb, ok := p.Fallback()
			if tt.wantFallback == "" {
				if ok {
					t.Errorf("unexpected fallback %q", fb.Method)
				}
			} else if !ok || fb.Method != tt.wantFallback {
				t.Errorf("Fallback() = %q, %t, want %q", fb.Method, ok, tt.wantFallback)
			}
		})
	}
}

func TestBuildPlanShape(t *testing.T) {
	// A plan always holds one or two strategies, the second strictly
	// lower-ranked than the first.
	rank := map[string]int{MethodCryptoErase: 0, MethodSecureErase: 1, MethodFormat: 2}

	for _, caps := range []*device.Capabilities{
		capsWith(true, true, true),
		capsWith(true, true, false),
		capsWith(false, true, true),
		capsWith(false, false, true),
	} {
		p, err := Build(caps)
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if len(p.Strategies) < 1 || len(p.Strategies) > 2 {
			t.Fatalf("len(Strategies) = %d, want 1 or 2", len(p.Strategies))
		}
		if len(p.Strategies) == 2 && rank[p.Strategies[1].Method] <= rank[p.Strategies[0].Method] {
			t.Errorf("fallback %q not lower-ranked than primary %q",
				p.Strategies[1].Method, p.Strategies[0].Method)
		}
		for _, s := range p.Strategies {
			if s.Risk != RiskDestructive {
				t.Errorf("strategy %q risk = %q, want destructive", s.Method, s.Risk)
			}
		}
	}
}

func TestBuildNoCapability(t *testing.T) {
	_, err := Build(capsWith(false, false, false))
	if !errors.Is(err, ErrNoEraseCapability) {
		t.Errorf("Build error = %v, want ErrNoEraseCapability", err)
	}
}

func TestNewFormatStrategy(t *testing.T) {
	tests := []struct {
		method   string
		wantSES  int
		wantArgs []string
	}{
		{MethodCryptoErase, 2, []string{"format", "/dev/nvme0n1", "--ses=2", "--force"}},
		{MethodSecureErase, 1, []string{"format", "/dev/nvme0n1", "--ses=1", "--force"}},
		{MethodFormat, 0, []string{"format", "/dev/nvme0n1", "--force"}},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			s := NewFormatStrategy("/dev/nvme0n1", tt.method)
			if s.Command != "nvme" {
				t.Errorf("Command = %q, want nvme", s.Command)
			}
			if s.SES != tt.wantSES {
				t.Errorf("SES = %d, want %d", s.SES, tt.wantSES)
			}
			if len(s.Args) != len(tt.wantArgs) {
				t.Fatalf("Args = %v, want %v", s.Args, tt.wantArgs)
			}
			for i := range s.Args {
				if s.Args[i] != tt.wantArgs[i] {
					t.Errorf("Args[%d] = %q, want %q", i, s.Args[i], tt.wantArgs[i])
				}
			}
		})
	}
}
