package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-relay-bot/cmd"
)

// @title                      Relay Bot API
// @version                    1.0
// @description                Ops API of the marketplace relay bot: request lifecycle, payment and proxy-chat rooms.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
func main() {
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("relaybot")
		os.Exit(1)
	}
}
