package http

import (
	"societygate/internal/core"
	"societygate/internal/proto"
	"societygate/internal/store"
)

func messageToWire(msg *store.Message) proto.Message {
	readBy := msg.ReadBy
	if readBy == nil {
		readBy = []string{}
	}
	return proto.Message{
		ID:              msg.ID,
		AuthorID:        msg.AuthorID,
		AuthorName:      msg.AuthorName,
		AuthorAvatarURL: msg.AuthorAvatarURL,
		Kind:            string(msg.Kind),
		Body:            msg.Body,
		AttachmentURL:   msg.AttachmentURL,
		AttachmentName:  msg.AttachmentName,
		CreatedAt:       msg.CreatedAt,
		IsEdited:        msg.IsEdited,
		EditedAt:        msg.EditedAt,
		ReadBy:          readBy,
	}
}

func ackOutbound(ack *core.Ack) proto.Outbound {
	return proto.Outbound{
		Type: proto.OutboundTypeAck,
		Data: proto.AckData{Success: true, MessageID: ack.MessageID},
	}
}

func errorOutbound(cerr *core.CoreError) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: cerr.Code, Msg: cerr.Message},
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventUserOnline:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserOnline,
			Data: proto.EventUserPresence{
				UserID:      event.Entry.UserID,
				DisplayName: event.Entry.DisplayName,
			},
		}
	case core.EventUserOffline:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserOffline,
			Data: proto.EventUserPresence{
				UserID:      event.Entry.UserID,
				DisplayName: event.Entry.DisplayName,
			},
		}
	case core.EventOnlineUsers:
		users := make([]proto.OnlineUser, 0, len(event.Entries))
		for _, entry := range event.Entries {
			users = append(users, proto.OnlineUser{
				UserID:      entry.UserID,
				DisplayName: entry.DisplayName,
			})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameOnlineUsers,
			Data:  proto.EventOnlineUsers{Users: users},
		}
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameNewMessage,
			Data:  messageToWire(event.Message),
		}
	case core.EventMessageRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessageRead,
			Data: proto.EventMessageRead{
				MessageID: event.MessageID,
				UserID:    event.UserID,
			},
		}
	case core.EventMessageDeleted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessageDeleted,
			Data:  proto.EventMessageDeleted{MessageID: event.MessageID},
		}
	case core.EventMessageEdited:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameMessageEdited,
			Data: proto.EventMessageEdited{
				MessageID: event.MessageID,
				NewBody:   event.NewBody,
				EditedAt:  event.EditedAt,
			},
		}
	case core.EventUserTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNameUserTyping,
			Data: proto.EventUserTyping{
				UserID:      event.Entry.UserID,
				DisplayName: event.Entry.DisplayName,
				IsTyping:    event.IsTyping,
			},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
