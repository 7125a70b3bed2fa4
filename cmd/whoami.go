package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/spf13/cobra"
)

const defaultRegion = "us-east-1"

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Call STS GetCallerIdentity with the issued credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.close()

			f, err := a.fetcher()
			if err != nil {
				return err
			}
			profile, _ := a.cfg.ActiveProfile()

			region := profile.Region
			if region == "" {
				region = regionFromEndpoint(profile.Endpoint)
			}

			ctx := cmd.Context()
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
				awsconfig.WithRegion(region),
				awsconfig.WithCredentialsProvider(aws.NewCredentialsCache(f)),
			)
			if err != nil {
				return fmt.Errorf("loading AWS configuration: %w", err)
			}

			out, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
			if err != nil {
				var apiErr smithy.APIError
				if errors.As(err, &apiErr) {
					a.logger.Error("STS rejected the credentials",
						slog.String("code", apiErr.ErrorCode()),
						slog.String("message", apiErr.ErrorMessage()))
					return fmt.Errorf("sts %s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
				}
				return fmt.Errorf("calling sts: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Account: %s\n", aws.ToString(out.Account))
			fmt.Fprintf(w, "Arn:     %s\n", aws.ToString(out.Arn))
			fmt.Fprintf(w, "UserId:  %s\n", aws.ToString(out.UserId))
			return nil
		},
	}
}

// regionFromEndpoint extracts the region from a credentials provider host
// such as "abc.credentials.iot.eu-west-1.amazonaws.com".
func regionFromEndpoint(endpoint string) string {
	host := endpoint
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	host, _, _ = strings.Cut(host, "/")
	host, _, _ = strings.Cut(host, ":")

	labels := strings.Split(host, ".")
	for i, label := range labels {
		if label == "iot" && i+1 < len(labels) && strings.Count(labels[i+1], "-") >= 2 {
			return labels[i+1]
		}
	}
	return defaultRegion
}
