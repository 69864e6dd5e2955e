package uetr

import "encoding/json"

// UETR field paths per message type. These must match the wire format
// exactly for interoperability with the clearing systems.
var fieldPaths = map[string][]pathToken{
	MsgPain001: {
		field("CstmrCdtTrfInitn"), field("PmtInf"), index(0),
		field("CdtTrfTxInf"), index(0), field("PmtId"), field("UETR"),
	},
	MsgPacs008: {
		field("FIToFICstmrCdtTrf"), field("CdtTrfTxInf"), index(0),
		field("PmtId"), field("UETR"),
	},
	MsgPacs002: {
		field("Document"), field("FIToFIPmtStsRpt"), field("TxInfAndSts"), index(0),
		field("OrgnlTxId"), field("OrgnlUETR"),
	},
}

type pathToken struct {
	key   string
	idx   int
	isIdx bool
}

func field(name string) pathToken { return pathToken{key: name} }
func index(i int) pathToken       { return pathToken{idx: i, isIdx: true} }

// Extract navigates the message-type-specific field path and returns the
// UETR candidate found there. It never fails on malformed or partial
// structures: any absent segment, wrong shape or unknown message type
// yields ("", false).
func Extract(message []byte, messageType string) (string, bool) {
	path, ok := fieldPaths[messageType]
	if !ok {
		return "", false
	}

	var root any
	if err := json.Unmarshal(message, &root); err != nil {
		return "", false
	}

	node := root
	for _, token := range path {
		if token.isIdx {
			arr, ok := node.([]any)
			if !ok || token.idx >= len(arr) {
				return "", false
			}
			node = arr[token.idx]
			continue
		}
		obj, ok := node.(map[string]any)
		if !ok {
			return "", false
		}
		node, ok = obj[token.key]
		if !ok {
			return "", false
		}
	}

	value, ok := node.(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
