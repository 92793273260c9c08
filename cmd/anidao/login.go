package main

import (
	"fmt"
	"io"
	"time"

	"github.com/anidao/anidao/internal/auth"
	"github.com/anidao/anidao/internal/config"
	"github.com/goccy/go-json"
)

func runSignLogin(out io.Writer, telegramID int64, firstName, username string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if telegramID == 0 {
		telegramID = cfg.AdminTelegramID
	}

	p := &auth.Payload{
		ID:        auth.FlexInt(telegramID),
		FirstName: firstName,
		Username:  username,
		AuthDate:  auth.FlexInt(time.Now().Unix()),
	}
	p.Hash = auth.Sign(p, cfg.TelegramBotToken)

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}
