package domain

import (
	"fmt"
	"sort"
	"time"
)

// DefaultOperation é a chave de fallback de todo registro.
const DefaultOperation = "default"

// Registry mapeia nomes de operação para regras. É imutável depois de criado:
// cada contexto de middleware recebe o seu próprio registro.
type Registry struct {
	name  string
	rules map[string]RateLimitRule
	def   RateLimitRule
}

// RuleOverride ajusta uma regra existente. Campos zerados mantêm o valor base.
type RuleOverride struct {
	MaxAttempts int
	Window      time.Duration
	Message     string
}

func NewRegistry(name string, def RateLimitRule, rules ...RateLimitRule) (Registry, error) {
	if def.Operation == "" {
		def.Operation = DefaultOperation
	}
	if err := def.Validate(); err != nil {
		return Registry{}, fmt.Errorf("registry %s: %w", name, err)
	}

	byName := make(map[string]RateLimitRule, len(rules))
	for _, rule := range rules {
		if rule.Operation == "" || rule.Operation == DefaultOperation {
			return Registry{}, fmt.Errorf("registry %s: %w: operation name %q is reserved or empty", name, ErrInvalidRule, rule.Operation)
		}
		if err := rule.Validate(); err != nil {
			return Registry{}, fmt.Errorf("registry %s: %w", name, err)
		}
		if _, dup := byName[rule.Operation]; dup {
			return Registry{}, fmt.Errorf("registry %s: %w: duplicated operation %q", name, ErrInvalidRule, rule.Operation)
		}
		byName[rule.Operation] = rule
	}

	return Registry{name: name, rules: byName, def: def}, nil
}

// MustRegistry é usado pelos catálogos estáticos, que são válidos por construção.
func MustRegistry(name string, def RateLimitRule, rules ...RateLimitRule) Registry {
	reg, err := NewRegistry(name, def, rules...)
	if err != nil {
		panic(err)
	}
	return reg
}

func (r Registry) Name() string {
	return r.name
}

// Lookup nunca falha: operações desconhecidas caem na regra default.
func (r Registry) Lookup(operation string) RateLimitRule {
	if rule, ok := r.rules[operation]; ok {
		return rule
	}
	return r.def
}

// Has indica se a operação tem regra própria.
func (r Registry) Has(operation string) bool {
	if operation == DefaultOperation {
		return true
	}
	_, ok := r.rules[operation]
	return ok
}

func (r Registry) Default() RateLimitRule {
	return r.def
}

// Operations lista as operações configuradas, em ordem alfabética.
func (r Registry) Operations() []string {
	ops := make([]string, 0, len(r.rules))
	for op := range r.rules {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// WithOverrides devolve um novo registro com as regras ajustadas. Operações
// desconhecidas são rejeitadas para que erros de digitação na configuração
// não passem despercebidos.
func (r Registry) WithOverrides(overrides map[string]RuleOverride) (Registry, error) {
	if len(overrides) == 0 {
		return r, nil
	}

	def := r.def
	rules := make([]RateLimitRule, 0, len(r.rules))
	for _, rule := range r.rules {
		rules = append(rules, rule)
	}

	for op, override := range overrides {
		// a regra default também atende pelo próprio nome (ex.: "web" no contexto path)
		if op == DefaultOperation || op == r.def.Operation {
			def = override.apply(def)
			continue
		}
		if _, ok := r.rules[op]; !ok {
			return Registry{}, fmt.Errorf("registry %s: %w: unknown operation %q", r.name, ErrInvalidRule, op)
		}
		for i := range rules {
			if rules[i].Operation == op {
				rules[i] = override.apply(rules[i])
			}
		}
	}

	return NewRegistry(r.name, def, rules...)
}

func (o RuleOverride) apply(rule RateLimitRule) RateLimitRule {
	if o.MaxAttempts != 0 {
		rule.MaxAttempts = o.MaxAttempts
	}
	if o.Window != 0 {
		rule.Window = o.Window
	}
	if o.Message != "" {
		rule.Message = o.Message
	}
	return rule
}
