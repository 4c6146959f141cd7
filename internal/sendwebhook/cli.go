package sendwebhook

import (
	"os"
	"runtime"

	"github.com/spf13/pflag"
)

// BindFlags registers the load-run flags on fs and returns the config they
// fill in once fs is parsed.
func BindFlags(fs *pflag.FlagSet) *Config {
	c := &Config{}
	fs.StringVarP(&c.BaseURL, "url", "u", DefaultBaseURL, "base URL of the service")
	fs.StringVarP(&c.Secret, "secret", "s", os.Getenv("MEETLINK_WEBHOOK_SECRET"), "webhook secret (defaults to $MEETLINK_WEBHOOK_SECRET)")
	fs.IntVarP(&c.Meetings, "meetings", "m", DefaultMeetings, "number of distinct meeting ids")
	fs.IntVarP(&c.Repeat, "repeat", "r", DefaultRepeat, "deliveries per meeting; values above 1 send concurrent duplicates")
	fs.StringVarP(&c.Event, "event", "e", DefaultEvent, "event type of each delivery")
	fs.Float64Var(&c.IgnoredRate, "ignored-rate", 0, "fraction of meetings sent with an unsubscribed event type")
	fs.IntVarP(&c.Workers, "workers", "w", runtime.NumCPU()*2, "number of concurrent senders")
	fs.DurationVar(&c.Timeout, "timeout", DefaultTimeout, "HTTP request timeout")
	fs.BoolVar(&c.Verify, "verify", false, "fetch processing records after sending")
	fs.DurationVar(&c.VerifyWait, "verify-wait", DefaultVerifyWait, "pause before verification")
	fs.StringVarP(&c.OutputFile, "output", "o", "", "write generated deliveries to this JSON file")
	fs.BoolVarP(&c.Verbose, "verbose", "v", false, "log every delivery that was not accepted")
	return c
}

// Usage is printed above the flag defaults.
const Usage = `send-webhook signs and sends meeting webhooks to a meetlink service.

Usage:
  send-webhook [flags]

Examples:
  # 1000 meetings, each delivered twice concurrently
  send-webhook --secret s3cret

  # 5000 meetings delivered three times, 10% with an ignored event, then verify
  send-webhook -m 5000 -r 3 --ignored-rate 0.1 --verify -u http://localhost:8080

Flags:
`
