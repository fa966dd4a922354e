// Package handlers agrupa handlers HTTP utilizados para testes e exemplo.
package handlers

import (
	"encoding/json"
	"net/http"
)

// Action responde sucesso para a operação informada. Serve de destino para as
// rotas protegidas pelos rate limiters enquanto os serviços reais não existem.
func Action(operation string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "success",
			"operation": operation,
		})
	}
}

// Credentials simula um endpoint de login/OTP: sem email ou telefone no corpo
// responde 422, o que conta como tentativa falha para o limiter de auth.
func Credentials(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || (body.Email == "" && body.Phone == "") {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"status":  "error",
			"message": "email or phone is required",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
