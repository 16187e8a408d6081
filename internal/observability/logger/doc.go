// Package logger expone un logger Zap singleton con scoping por contexto.
//
// Init se llama una vez en main; el resto del código obtiene el logger con
// From(ctx), que devuelve el logger "scoped" inyectado por el middleware HTTP
// (request_id, method, path) o el singleton si no hay uno en el contexto.
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.grant.password"))
//	log.Info("tokens issued", logger.UserID(u.ID))
//
// "dev" escribe en consola con colores, "prod" escribe JSON.
package logger
