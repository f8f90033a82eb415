package service

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/getlisa/copilot-server/lib"
	"github.com/getlisa/copilot-server/model"
	"github.com/getlisa/copilot-server/platform"
)

// Scheduled maintenance tasks, wired into cron from main.

// SweepContextsTask deletes expired conversation context entries.
func SweepContextsTask() {
	logger.Infof("[%s] Start scheduled task SweepContextsTask", "scheduled task")
	n, err := model.SweepExpiredContexts()
	if err != nil {
		logger.Warnf("[%s] sweep contexts error, %s", "scheduled task", err)
		return
	}
	logger.Infof("[%s] Finished SweepContextsTask, removed %d entries", "scheduled task", n)
}

// ArchiveConversationsTask moves long-closed conversations to ARCHIVED.
func ArchiveConversationsTask() {
	logger.Infof("[%s] Start scheduled task ArchiveConversationsTask", "scheduled task")
	days := 30
	n, err := model.ArchiveStaleConversations(days)
	if err != nil {
		logger.Warnf("[%s] archive conversations error, %s", "scheduled task", err)
		return
	}
	logger.Infof("[%s] Finished ArchiveConversationsTask, archived %d conversations", "scheduled task", n)
}

// DailyDigestTask mails yesterday's activity numbers to the ops list.
func DailyDigestTask() {
	logger.Infof("[%s] Start scheduled task DailyDigestTask", "scheduled task")
	startTime := time.Now()

	to := os.Getenv("OPS_DIGEST_TO")
	if to == "" {
		logger.Infof("[%s] digest recipients not configured, skipping", "scheduled task")
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	db := platform.DB

	var conversations, messages, toolCalls, failedToolCalls int64
	db.Model(&model.Conversation{}).Where("created_at > ?", since).Count(&conversations)
	db.Model(&model.Message{}).Where("created_at > ?", since).Count(&messages)
	db.Model(&model.ToolCall{}).Where("created_at > ?", since).Count(&toolCalls)
	db.Model(&model.ToolCall{}).Where("created_at > ? AND status = ?", since, model.ToolCallFailed).Count(&failedToolCalls)

	body := fmt.Sprintf(`# Copilot daily digest

- New conversations: %d
- Messages: %d
- Tool calls: %d (%d failed)
`, conversations, messages, toolCalls, failedToolCalls)

	if err := lib.SendMail("Copilot daily digest", body, strings.Split(to, ",")); err != nil {
		logger.Warnf("[%s] send digest error, %s", "scheduled task", err)
		return
	}

	logger.Infof("[%s] Finished DailyDigestTask cost %v", "scheduled task", time.Since(startTime))
}
