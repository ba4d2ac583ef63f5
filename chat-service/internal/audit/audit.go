package audit

import (
	"context"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

// Audit actions for chat-service.
const (
	ActionConnect           = "chat.connect"
	ActionAuthFailed        = "chat.auth_failed"
	ActionSessionReplaced   = "chat.session_replaced"
	ActionJoinRoom          = "chat.join_room"
	ActionJoinDenied        = "chat.join_denied"
	ActionLeaveRoom         = "chat.leave_room"
	ActionSendMessage       = "chat.send_message"
	ActionCreateChat        = "chat.create_chat"
	ActionInvite            = "chat.invite"
	ActionInvitationRespond = "chat.invitation_respond"
	ActionInvitationSweep   = "chat.invitation_sweep"
	ActionDisconnect        = "chat.disconnect"
	ActionLogout            = "chat.logout"
)

// Field constants for audit entries.
const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogTarget emits an audit entry about an action on a specific chat or invitation.
func LogTarget(ctx context.Context, action, userID, targetID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
