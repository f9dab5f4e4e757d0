package gatewaysvc

import (
	"encoding/json"
	"fmt"
)

func addrOf(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

func encodeJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func decodeJSON(raw json.RawMessage, v interface{}) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, v)
}
