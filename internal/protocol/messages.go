package protocol

import "fmt"

type MessageID byte

const (
	MsgScreenshot     MessageID = 11
	MsgState          MessageID = 12
	MsgScore          MessageID = 23
	MsgCartShootSafe  MessageID = 31
	MsgPolarShootSafe MessageID = 32
	MsgZoomOut        MessageID = 34
	MsgZoomIn         MessageID = 35
	MsgCartShootFast  MessageID = 41
	MsgPolarShootFast MessageID = 42
	MsgLoadLevel      MessageID = 51
	MsgRestartLevel   MessageID = 52
	MsgIsLevelOver    MessageID = 60
	MsgClose          MessageID = 66
)

// ReplyKind tells the client how to read the response to a message.
type ReplyKind int

const (
	ReplyInt ReplyKind = iota
	ReplyImage
)

type shape struct {
	name  string
	arity int
	reply ReplyKind
}

var messages = map[MessageID]shape{
	MsgScreenshot:     {name: "screenshot", arity: 0, reply: ReplyImage},
	MsgState:          {name: "state", arity: 0, reply: ReplyInt},
	MsgScore:          {name: "score", arity: 0, reply: ReplyInt},
	MsgCartShootSafe:  {name: "cart_shoot_safe", arity: 3, reply: ReplyInt},
	MsgPolarShootSafe: {name: "polar_shoot_safe", arity: 3, reply: ReplyInt},
	MsgZoomOut:        {name: "zoom_out", arity: 0, reply: ReplyInt},
	MsgZoomIn:         {name: "zoom_in", arity: 0, reply: ReplyInt},
	MsgCartShootFast:  {name: "cart_shoot_fast", arity: 3, reply: ReplyInt},
	MsgPolarShootFast: {name: "polar_shoot_fast", arity: 3, reply: ReplyInt},
	MsgLoadLevel:      {name: "load_level", arity: 1, reply: ReplyInt},
	MsgRestartLevel:   {name: "restart_level", arity: 0, reply: ReplyInt},
	MsgIsLevelOver:    {name: "is_level_over", arity: 0, reply: ReplyInt},
	MsgClose:          {name: "close", arity: 0, reply: ReplyInt},
}

// MaxArity is the largest number of int32 arguments any message carries.
const MaxArity = 3

// Arity returns how many int32 arguments follow id on the wire.
func Arity(id MessageID) (int, bool) {
	s, ok := messages[id]
	return s.arity, ok
}

func ReplyKindOf(id MessageID) (ReplyKind, bool) {
	s, ok := messages[id]
	return s.reply, ok
}

func Known(id MessageID) bool {
	_, ok := messages[id]
	return ok
}

// IDs lists every known message id in ascending order.
func IDs() []MessageID {
	ids := make([]MessageID, 0, len(messages))
	for id := 0; id < 256; id++ {
		if Known(MessageID(id)) {
			ids = append(ids, MessageID(id))
		}
	}
	return ids
}

func (id MessageID) String() string {
	if s, ok := messages[id]; ok {
		return s.name
	}
	return fmt.Sprintf("mid(%d)", byte(id))
}

// Command is one decoded request. Args has exactly Arity(ID) entries.
type Command struct {
	ID   MessageID
	Args []int32
}

// Arg returns the i-th argument as an int.
func (c Command) Arg(i int) int {
	return int(c.Args[i])
}
