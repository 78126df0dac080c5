// Command jobctl posts a fresh job-level power cap to a running root's
// jobctl endpoint (pkg/jobctl). Grounded on the teacher's metrics-daemonset:
// a minimal, flag-driven, single-purpose CLI hitting one HTTP endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/jobpower/powerbalancer/pkg/jobctl"
)

func main() {
	root := pflag.String("root", "http://localhost:9093", "base URL of the root's jobctl endpoint")
	watts := pflag.Float64("watts", 0, "new job-level power cap, in watts")
	timeout := pflag.Duration("timeout", 5*time.Second, "request timeout")
	pflag.Parse()

	if *watts <= 0 {
		fmt.Fprintln(os.Stderr, "jobctl: --watts must be a positive number of watts")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := jobctl.PostCap(ctx, *root, *watts); err != nil {
		fmt.Fprintln(os.Stderr, "jobctl:", err)
		os.Exit(1)
	}
	fmt.Printf("job cap updated to %.1f W\n", *watts)
}
