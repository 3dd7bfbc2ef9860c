package bdd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

func postMessage(apiURL, uid, message string) error {
	body, err := json.Marshal(map[string]string{"uid": uid, "message": message})
	if err != nil {
		return err
	}
	resp, err := http.Post(apiURL+"/api/messages.add", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("messages.add returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
