package websocket

import "encoding/json"

// remarshal converts the loosely typed Data field into a concrete request.
func remarshal(in interface{}, out interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
