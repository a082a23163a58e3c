package events

import "encoding/json"

func encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}
