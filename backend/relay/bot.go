// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package relay

import (
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/efchatnet/relay/backend/models"
)

// Fixed synthetic identity used for automated replies. It never connects,
// so routing to it resolves nobody.
const (
	BotID   = "bot"
	BotName = "Bot 🤖"
)

var botReplies = []string{
	"Mmm, interesante 🎧",
	"Genial, suena bien 😄",
	"Esa voz me inspira confianza 😎",
	"¡Qué buena nota de voz! 🎵",
	"No entendí mucho, pero suena cool 😅",
	"Buen ritmo 😏",
	"Esa nota me motivó 🔥",
	"Me gusta tu energía 😌",
	"Wow, eso sí que fue intenso 🎤",
	"Creo que podrías ser cantante 😜",
}

// NewAutoresponder returns a post-route hook that answers every voice note
// with a canned text reply after the given delay. The reply goes through
// the ordinary Route path, addressed to the same target as the voice note.
func NewAutoresponder(router *Router, delay time.Duration) Hook {
	return func(msg models.Message) {
		if msg.Kind != models.KindAudio || msg.From == BotID {
			return
		}
		time.AfterFunc(delay, func() {
			reply := models.Message{
				ID:       uuid.New().String(),
				From:     BotID,
				FromName: BotName,
				To:       msg.To,
				ToType:   msg.ToType,
				TS:       time.Now().UnixMilli(),
				Kind:     models.KindText,
				Text:     botReplies[rand.Intn(len(botReplies))],
			}
			if err := router.Route(reply); err != nil {
				log.Printf("Autoresponder reply failed: %v", err)
			}
		})
	}
}
