package domain

import "strings"

// Prefixos de escopo das chaves de contador.
const (
	ScopeAPI             = "api_rate_limit"
	ScopeChat            = "rate_limit"
	ScopeUnauthenticated = "rate_limit:unauthenticated"
	ScopeAuth            = "auth"
)

type CounterKey string

func (k CounterKey) String() string {
	return string(k)
}

// RequestContext expõe ao construtor de chaves os dados da requisição sem
// acoplar o domínio a net/http.
type RequestContext interface {
	RouteParam(name string) string
	BodyField(name string) string
}

type KeyBuilder struct {
	scope string
}

func NewKeyBuilder(scope string) KeyBuilder {
	return KeyBuilder{scope: scope}
}

func (b KeyBuilder) Scope() string {
	return b.scope
}

// Build monta {scope}:{identity}:{operation} e, quando a regra isola por
// alvo, acrescenta :{label}:{id}. Sem alvo na requisição a chave base é
// usada.
func (b KeyBuilder) Build(identity, operation string, target TargetSpec, req RequestContext) CounterKey {
	base := b.scope + ":" + escapeSegment(identity) + ":" + escapeSegment(operation)
	if !target.Enabled() || req == nil {
		return CounterKey(base)
	}
	if id := ResolveTarget(target, req); id != "" {
		return CounterKey(base + ":" + escapeSegment(target.Label) + ":" + escapeSegment(id))
	}
	return CounterKey(base)
}

// ResolveTarget procura o alvo nos parâmetros de rota e depois no corpo.
func ResolveTarget(target TargetSpec, req RequestContext) string {
	for _, name := range target.RouteParams {
		if v := strings.TrimSpace(req.RouteParam(name)); v != "" {
			return v
		}
	}
	for _, name := range target.BodyFields {
		if v := strings.TrimSpace(req.BodyField(name)); v != "" {
			return v
		}
	}
	return ""
}

// JoinKey monta uma chave a partir de segmentos já nomeados pelo chamador,
// escapando cada um deles.
func JoinKey(segments ...string) CounterKey {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = escapeSegment(s)
	}
	return CounterKey(strings.Join(escaped, ":"))
}

var segmentEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

func escapeSegment(s string) string {
	return segmentEscaper.Replace(s)
}
