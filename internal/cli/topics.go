// v0
// internal/cli/topics.go
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/auton88n/tradeayn-sub003/internal/events"
)

func TopicsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Manage the Kafka topic carrying run events",
	}
	cmd.AddCommand(topicsEnsureCmd())
	return cmd
}

func topicsEnsureCmd() *cobra.Command {
	var (
		brokers string
		spec    events.TopicSpec
	)
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Create the run events topic if missing and check its partitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, b := range strings.Split(brokers, ",") {
				if b = strings.TrimSpace(b); b != "" {
					spec.Brokers = append(spec.Brokers, b)
				}
			}
			n, err := events.EnsureTopic(cmd.Context(), discardLogger(), spec)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "topic %s ready with %d partitions\n", spec.Topic, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&brokers, "brokers", "kafka:9092", "comma-separated Kafka brokers")
	cmd.Flags().StringVar(&spec.Topic, "topic", "compliance.runs", "topic name")
	cmd.Flags().IntVar(&spec.Partitions, "partitions", 3, "partition count")
	cmd.Flags().IntVar(&spec.Replication, "replication", 1, "replication factor")
	return cmd
}
