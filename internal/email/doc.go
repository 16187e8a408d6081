// Package email contiene el envío SMTP (go-mail) y los templates embebidos
// de los emails transaccionales (verificación, reset de password, bienvenida).
package email
