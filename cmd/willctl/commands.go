package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"hera/internal/will"

	"github.com/spf13/cobra"
)

func readCommands(o *options) []*cobra.Command {
	show := &cobra.Command{
		Use:   "show GRANTOR",
		Short: "Show a grantor's will",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantor, err := will.ParseAddress("grantor", args[0])
			if err != nil {
				return err
			}
			return o.get(cmd.Context(), "/api/v1/wills/"+grantor.Hex())
		},
	}
	asset := &cobra.Command{
		Use:   "asset GRANTOR INDEX",
		Short: "Show one asset slot of a will",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantor, err := will.ParseAddress("grantor", args[0])
			if err != nil {
				return err
			}
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return o.get(cmd.Context(), fmt.Sprintf("/api/v1/wills/%s/assets/%d", grantor.Hex(), index))
		},
	}
	bequests := &cobra.Command{
		Use:   "bequests GRANTOR BENEFICIARY",
		Short: "List the assets a grantor left to a beneficiary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantor, err := will.ParseAddress("grantor", args[0])
			if err != nil {
				return err
			}
			beneficiary, err := will.ParseAddress("beneficiary", args[1])
			if err != nil {
				return err
			}
			return o.get(cmd.Context(), "/api/v1/wills/"+grantor.Hex()+"/beneficiaries/"+beneficiary.Hex()+"/assets")
		},
	}
	approval := &cobra.Command{
		Use:   "approval GRANTOR BENEFICIARY",
		Short: "Show acceptance and contract approval of a beneficiary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantor, err := will.ParseAddress("grantor", args[0])
			if err != nil {
				return err
			}
			beneficiary, err := will.ParseAddress("beneficiary", args[1])
			if err != nil {
				return err
			}
			return o.get(cmd.Context(), "/api/v1/wills/"+grantor.Hex()+"/beneficiaries/"+beneficiary.Hex()+"/approval")
		},
	}
	contract := &cobra.Command{
		Use:   "contract",
		Short: "Show contract owner and pause status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.get(cmd.Context(), "/api/v1/contract")
		},
	}
	health := &cobra.Command{
		Use:   "health",
		Short: "Check API and ledger health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.get(cmd.Context(), "/api/v1/health")
		},
	}
	return []*cobra.Command{show, asset, bequests, approval, contract, health}
}

func grantorCommands(o *options) []*cobra.Command {
	var interval time.Duration
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a will for the API signer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secs, err := wholeSeconds(interval)
			if err != nil {
				return err
			}
			return o.post(cmd.Context(), http.MethodPost, "/api/v1/will", map[string]int64{"heartbeatIntervalSeconds": secs})
		},
	}
	create.Flags().DurationVar(&interval, "interval", will.MinHeartbeat, "heartbeat interval")

	deposit := &cobra.Command{Use: "deposit", Short: "Deposit an asset into the will"}
	deposit.AddCommand(
		&cobra.Command{
			Use:   "eth BENEFICIARY AMOUNT_WEI",
			Short: "Deposit native coin",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := will.ParseAddress("beneficiary", args[0]); err != nil {
					return err
				}
				if _, err := will.ParseAmount("amountWei", args[1]); err != nil {
					return err
				}
				return o.post(cmd.Context(), http.MethodPost, "/api/v1/will/deposits/eth", map[string]string{
					"beneficiary": args[0],
					"amountWei":   args[1],
				})
			},
		},
		&cobra.Command{
			Use:   "erc20 TOKEN AMOUNT BENEFICIARY",
			Short: "Deposit a fungible token (approve the will contract first)",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := will.ParseAddress("token", args[0]); err != nil {
					return err
				}
				if _, err := will.ParseAmount("amount", args[1]); err != nil {
					return err
				}
				if _, err := will.ParseAddress("beneficiary", args[2]); err != nil {
					return err
				}
				return o.post(cmd.Context(), http.MethodPost, "/api/v1/will/deposits/erc20", map[string]string{
					"token":       args[0],
					"amount":      args[1],
					"beneficiary": args[2],
				})
			},
		},
		&cobra.Command{
			Use:   "erc721 TOKEN TOKEN_ID BENEFICIARY",
			Short: "Deposit a non-fungible token (approve the will contract first)",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				if _, err := will.ParseAddress("token", args[0]); err != nil {
					return err
				}
				if _, err := will.ParseAmount("tokenId", args[1]); err != nil {
					return err
				}
				if _, err := will.ParseAddress("beneficiary", args[2]); err != nil {
					return err
				}
				return o.post(cmd.Context(), http.MethodPost, "/api/v1/will/deposits/erc721", map[string]string{
					"token":       args[0],
					"tokenId":     args[1],
					"beneficiary": args[2],
				})
			},
		},
	)

	checkIn := &cobra.Command{
		Use:   "check-in",
		Short: "Prove liveness and reset the deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.post(cmd.Context(), http.MethodPost, "/api/v1/will/check-in", nil)
		},
	}

	heartbeat := &cobra.Command{Use: "heartbeat", Short: "Change the heartbeat interval"}
	heartbeat.AddCommand(
		heartbeatCmd(o, "set DURATION", "Set a new interval (at least 24h)", "/api/v1/will/heartbeat"),
		heartbeatCmd(o, "extend DURATION", "Lengthen the interval without resetting the deadline", "/api/v1/will/heartbeat/extend"),
	)

	withdraw := &cobra.Command{
		Use:   "withdraw",
		Short: "Return every unclaimed asset and close the will",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.post(cmd.Context(), http.MethodPost, "/api/v1/will/emergency-withdraw", nil)
		},
	}

	remove := &cobra.Command{
		Use:   "remove INDEX",
		Short: "Take one asset back out of the will",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return o.post(cmd.Context(), http.MethodPost, fmt.Sprintf("/api/v1/will/assets/%d/remove", index), nil)
		},
	}

	reassign := &cobra.Command{
		Use:   "reassign INDEX BENEFICIARY",
		Short: "Name a different beneficiary for an asset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			if _, err := will.ParseAddress("beneficiary", args[1]); err != nil {
				return err
			}
			return o.post(cmd.Context(), http.MethodPost, fmt.Sprintf("/api/v1/will/assets/%d/beneficiary", index),
				map[string]string{"beneficiary": args[1]})
		},
	}

	contractBeneficiary := &cobra.Command{Use: "contract-beneficiary", Short: "Allow-list contract accounts as beneficiaries"}
	contractBeneficiary.AddCommand(
		contractBeneficiaryCmd(o, "approve", http.MethodPost),
		contractBeneficiaryCmd(o, "revoke", http.MethodDelete),
	)

	return []*cobra.Command{create, deposit, checkIn, heartbeat, withdraw, remove, reassign, contractBeneficiary}
}

func heartbeatCmd(o *options, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				return err
			}
			secs, err := wholeSeconds(d)
			if err != nil {
				return err
			}
			return o.post(cmd.Context(), http.MethodPost, path, map[string]int64{"heartbeatIntervalSeconds": secs})
		},
	}
}

func contractBeneficiaryCmd(o *options, verb, method string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " ADDRESS",
		Short: verb + " a contract beneficiary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := will.ParseAddress("beneficiary", args[0])
			if err != nil {
				return err
			}
			return o.post(cmd.Context(), method, "/api/v1/will/contract-beneficiaries/"+addr.Hex(), nil)
		},
	}
}

func beneficiaryCommands(o *options) []*cobra.Command {
	grantorPath := func(verb string) *cobra.Command {
		return &cobra.Command{
			Use:   verb + " GRANTOR",
			Short: verb + " a grantor's will",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				grantor, err := will.ParseAddress("grantor", args[0])
				if err != nil {
					return err
				}
				return o.post(cmd.Context(), http.MethodPost, "/api/v1/wills/"+grantor.Hex()+"/"+verb, nil)
			},
		}
	}
	claim := &cobra.Command{
		Use:   "claim GRANTOR INDEX",
		Short: "Claim an asset of a claimable will",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			grantor, err := will.ParseAddress("grantor", args[0])
			if err != nil {
				return err
			}
			index, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return o.post(cmd.Context(), http.MethodPost, fmt.Sprintf("/api/v1/wills/%s/assets/%d/claim", grantor.Hex(), index), nil)
		},
	}
	return []*cobra.Command{grantorPath("accept"), grantorPath("reject"), grantorPath("update-state"), claim}
}

func adminCommands(o *options) []*cobra.Command {
	toggle := func(verb string) *cobra.Command {
		return &cobra.Command{
			Use:   verb,
			Short: verb + " the will contract (owner only)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return o.post(cmd.Context(), http.MethodPost, "/api/v1/admin/"+verb, nil)
			},
		}
	}
	return []*cobra.Command{toggle("pause"), toggle("unpause")}
}

func parseIndex(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("index %q is not a non-negative integer", s)
	}
	return v, nil
}

func wholeSeconds(d time.Duration) (int64, error) {
	if d <= 0 || d%time.Second != 0 {
		return 0, fmt.Errorf("interval %s must be a positive whole number of seconds", d)
	}
	return int64(d / time.Second), nil
}
