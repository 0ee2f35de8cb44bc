// Package proto defines the wire message model: the tagged union of
// request/response kinds the node engine exchanges. Messages travel
// over TCP as newline-delimited JSON (see codec.go); the size field
// plays no part in framing.
package proto

import (
	"chorddht/internal/ring"
	"chorddht/internal/store"
)

// Kind enumerates every message type the protocol carries.
type Kind string

const (
	KindJoin         Kind = "Join"
	KindFwJoin       Kind = "FwJoin"
	KindAckJoin      Kind = "AckJoin"
	KindUpdate       Kind = "Update"
	KindRelocate     Kind = "Relocate"
	KindInsert       Kind = "Insert"
	KindFwInsert     Kind = "FwInsert"
	KindAckInsert    Kind = "AckInsert"
	KindDelete       Kind = "Delete"
	KindFwDelete     Kind = "FwDelete"
	KindAckDelete    Kind = "AckDelete"
	KindQuery        Kind = "Query"
	KindFwQuery      Kind = "FwQuery"
	KindQueryAll     Kind = "QueryAll"
	KindFwQueryAll   Kind = "FwQueryAll"
	KindOverlay      Kind = "Overlay"
	KindFwOverlay    Kind = "FwOverlay"
	KindQuit         Kind = "Quit"
	KindReply        Kind = "Reply"
)

// requestShaped are the kinds that always produce exactly one Reply
// back to the client address. Everything else is internal, node-to-node
// traffic.
var requestShaped = map[Kind]bool{
	KindJoin:     true,
	KindQuit:     true,
	KindInsert:   true,
	KindDelete:   true,
	KindQuery:    true,
	KindQueryAll: true,
	KindOverlay:  true,
}

// IsRequestShaped reports whether k is answered with a Reply.
func IsRequestShaped(k Kind) bool { return requestShaped[k] }

// Message is the envelope every wire exchange uses. Framing is
// newline-delimited (see ReadMessage/WriteMessage); Size is carried
// for diagnostics only and is never consulted to decide where a
// message ends.
type Message struct {
	Size   int            `json:"size"`
	Type   Kind           `json:"type"`
	Client *ring.NodeInfo `json:"client,omitempty"`
	Data   MsgData        `json:"data"`
}

// MsgData is the tagged payload union. Value holds the payload struct
// for the kind named by Type; Decode turns it back into that struct.
type MsgData struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// --- typed payloads, one per Kind ---

type JoinData struct {
	NewNode ring.NodeInfo `json:"new_node"`
}

type AckJoinData struct {
	Prev            ring.NodeInfo     `json:"prev"`
	Succ            ring.NodeInfo     `json:"succ"`
	NewItems        []store.Item      `json:"new_items"`
	ReplicationMode ConsistencyMode   `json:"mode"`
	ReplicationK    uint8             `json:"k"`
	TransferredLower ring.Id          `json:"transferred_lower"`
	TransferredUpper ring.Id          `json:"transferred_upper"`
	HasTransferred  bool              `json:"has_transferred"`
}

type UpdateData struct {
	Prev    *ring.NodeInfo `json:"prev,omitempty"`
	Succ    *ring.NodeInfo `json:"succ,omitempty"`
}

type RelocateData struct {
	KRemaining int          `json:"k_remaining"`
	Inc        bool         `json:"inc"`
	Range      *ring.Range  `json:"range,omitempty"`
	NewCopies  []store.Item `json:"new_copies,omitempty"`
}

type InsertData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type FwInsertData struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Replica     uint8  `json:"replica"`
	ForwardBack bool   `json:"forward_back"`
}

type AckInsertData struct {
	KeyHash    ring.Id `json:"key_hash"`
	ReplicaIdx uint8   `json:"replica_idx"`
}

type DeleteData struct {
	Key string `json:"key"`
}

type FwDeleteData struct {
	Key         string `json:"key"`
	ForwardBack bool   `json:"forward_back"`
}

type AckDeleteData struct {
	KeyHash    ring.Id `json:"key_hash"`
	ReplicaIdx uint8   `json:"replica_idx"`
}

type QueryData struct {
	Key string `json:"key"`
}

type FwQueryData struct {
	Key         string `json:"key"`
	ForwardTail bool   `json:"forward_tail"`
}

type QueryAllData struct {
	Records []store.Item `json:"records"`
	Header  ring.Id      `json:"header"`
}

type FwQueryAllData struct {
	Records []store.Item `json:"records"`
	Header  ring.Id      `json:"header"`
}

type OverlayData struct {
	Peers []ring.NodeInfo `json:"peers"`
}

type FwOverlayData struct {
	Peers []ring.NodeInfo `json:"peers"`
}

type QuitData struct {
	Id ring.Id `json:"id"`
}

type ReplyData struct {
	Text string `json:"text"`
}

// ConsistencyMode is the replication discipline a ring runs under.
type ConsistencyMode uint8

const (
	Eventual ConsistencyMode = iota
	Chain
	Quorum
)

func (m ConsistencyMode) String() string {
	switch m {
	case Eventual:
		return "eventual"
	case Chain:
		return "chain"
	case Quorum:
		return "quorum"
	default:
		return "unknown"
	}
}
