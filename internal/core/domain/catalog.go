package domain

import (
	"strings"
	"time"
)

// Nomes dos contextos de rate limiting.
const (
	ContextAPI  = "api"
	ContextChat = "chat"
	ContextAuth = "auth"
	ContextPath = "path"
)

// Limite fixo aplicado a requisições anônimas no contexto de API,
// independente da operação solicitada.
const (
	UnauthenticatedMaxAttempts = 10
	UnauthenticatedWindow      = 5 * time.Minute
	unauthenticatedMessage     = "Too many requests from this IP. Please authenticate or wait before trying again."
)

func rule(op string, attempts int, window time.Duration, message string) RateLimitRule {
	return RateLimitRule{Operation: op, MaxAttempts: attempts, Window: window, Message: message}
}

func isolated(r RateLimitRule, target TargetSpec) RateLimitRule {
	r.Isolation = target
	return r
}

// UnauthenticatedRule é a regra usada quando não há usuário autenticado.
func UnauthenticatedRule(operation string) RateLimitRule {
	return rule(operation, UnauthenticatedMaxAttempts, UnauthenticatedWindow, unauthenticatedMessage)
}

// APIRegistry contém os limites das ações autenticadas da API.
func APIRegistry() Registry {
	return MustRegistry(ContextAPI,
		rule(DefaultOperation, 200, time.Minute, "Too many requests. Please slow down."),
		isolated(
			rule("like_action", 100, time.Minute, "Too many like actions. Please wait before performing another action."),
			TargetSpec{Label: "target", RouteParams: []string{"userId"}, BodyFields: []string{"user_id"}},
		),
		rule("match_discovery", 50, time.Minute, "Too many match discovery requests. Please wait before searching again."),
		isolated(
			rule("profile_update", 20, time.Minute, "Too many profile updates. Please wait before updating again."),
			TargetSpec{Label: "profile", RouteParams: []string{"profile", "userId"}},
		),
		rule("photo_upload", 10, time.Minute, "Too many photo uploads. Please wait before uploading another photo."),
		rule("story_action", 20, time.Minute, "Too many story actions. Please wait before performing another action."),
		rule("call_action", 30, time.Minute, "Too many call actions. Please wait before making another call."),
		rule("auth_action", 5, 15*time.Minute, "Too many authentication attempts. Please wait before trying again."),
		rule("sensitive_action", 5, 5*time.Minute, "Too many sensitive actions. Please wait before trying again."),
		rule("block_action", 10, 5*time.Minute, "Too many block/unblock actions. Please wait before trying again."),
		rule("verification_submit", 3, time.Hour, "Too many verification submissions. Please wait before submitting again."),
		rule("panic_activation", 2, time.Minute, "Too many panic activations. Please wait before activating again."),
		rule("report_action", 5, 10*time.Minute, "Too many reports submitted. Please wait before reporting again."),
		rule("location_update", 100, time.Minute, "Too many location updates. Please wait before updating again."),
		rule("password_change", 3, time.Hour, "Too many password change attempts. Please wait 1 hour."),
		rule("email_change", 2, time.Hour, "Too many email change attempts. Please wait 1 hour."),
		rule("account_deletion", 1, 24*time.Hour, "Account deletion can only be attempted once per day."),
		rule("data_export", 2, time.Hour, "Too many data export requests. Please wait 1 hour."),
	)
}

// ChatRegistry contém os limites das ações de chat.
func ChatRegistry() Registry {
	message := TargetSpec{Label: "message", RouteParams: []string{"message_id", "messageId"}, BodyFields: []string{"message_id"}}
	return MustRegistry(ContextChat,
		rule(DefaultOperation, 300, time.Minute, "Too many requests. Please slow down."),
		isolated(
			rule("send_message", 60, time.Minute, "Too many messages sent. Please wait before sending another message."),
			TargetSpec{Label: "chat", RouteParams: []string{"id", "chat_id"}, BodyFields: []string{"chat_id"}},
		),
		rule("create_chat", 10, time.Minute, "Too many chat creation attempts. Please wait before creating another chat."),
		isolated(rule("edit_message", 30, time.Minute, "Too many edit attempts. Please wait before editing another message."), message),
		isolated(rule("delete_message", 20, time.Minute, "Too many delete attempts. Please wait before deleting another message."), message),
		rule("mark_read", 100, time.Minute, "Too many read status updates. Please wait a moment."),
	)
}

// AuthRegistry contém os limites de login e OTP, anteriores à sessão.
func AuthRegistry() Registry {
	return MustRegistry(ContextAuth,
		rule(DefaultOperation, 5, 10*time.Minute, "Too many attempts."),
		rule("login", 5, 10*time.Minute, "Too many login attempts."),
		rule("otp", 3, 15*time.Minute, "Too many OTP requests."),
	)
}

// PathRegistry contém os limites por prefixo de URL, usados em rotas sem
// instrumentação explícita. A regra default corresponde ao tráfego web.
func PathRegistry() Registry {
	const message = "Rate limit exceeded. Please try again later."
	return MustRegistry(ContextPath,
		rule("web", 2000, time.Hour, message),
		rule("like", 100, time.Hour, message),
		rule("message", 200, time.Hour, message),
		rule("search", 50, time.Hour, message),
		rule("upload", 20, time.Hour, message),
		rule("verification", 5, time.Hour, message),
		rule("emergency", 10, time.Hour, message),
		rule("api", 1000, time.Hour, message),
	)
}

// PathRoute associa um padrão de caminho a uma operação do PathRegistry.
// Um "*" final casa qualquer sufixo, inclusive com barras.
type PathRoute struct {
	Pattern   string
	Operation string
}

// DefaultPathRoutes segue a ordem de avaliação: o primeiro padrão que casar vence.
func DefaultPathRoutes() []PathRoute {
	return []PathRoute{
		{Pattern: "api/user/like/*", Operation: "like"},
		{Pattern: "api/user/message/*", Operation: "message"},
		{Pattern: "api/user/search", Operation: "search"},
		{Pattern: "api/user/upload/*", Operation: "upload"},
		{Pattern: "api/user/verification/*", Operation: "verification"},
		{Pattern: "api/user/emergency/*", Operation: "emergency"},
		{Pattern: "api/*", Operation: "api"},
	}
}

// MatchPath devolve a operação do primeiro padrão que casar com o caminho,
// ou DefaultOperation.
func MatchPath(routes []PathRoute, path string) string {
	path = strings.Trim(path, "/")
	for _, route := range routes {
		if matchPattern(strings.Trim(route.Pattern, "/"), path) {
			return route.Operation
		}
	}
	return DefaultOperation
}

func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(path, prefix)
	}
	return pattern == path
}
