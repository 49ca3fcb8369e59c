package sms

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Send delivers one SMS through the Twilio messages API.
func Send(accountSID, authToken, fromNumber, toNumber, body string) error {
	if !strings.HasPrefix(toNumber, "+") {
		return fmt.Errorf("invalid phone number: %s", toNumber)
	}

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", accountSID)
	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", fromNumber)
	form.Set("Body", body)

	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create SMS request for %s: %w", toNumber, err)
	}
	req.SetBasicAuth(accountSID, authToken)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS to %s: %w", toNumber, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("Twilio API returned status %d for %s", resp.StatusCode, toNumber)
	}
	return nil
}
