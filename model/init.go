package model

import "github.com/getlisa/copilot-server/platform"

func InstallDB() {
	db := platform.DB
	if err := db.AutoMigrate(
		&User{},
		&Conversation{},
		&Message{},
		&ToolCall{},
		&ImageFile{},
		&ConversationContext{}); err != nil {
		panic(err)
	}
}
