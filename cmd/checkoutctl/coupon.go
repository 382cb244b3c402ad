package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kkkkikiki/checkout/internal/apperr"
	"github.com/kkkkikiki/checkout/internal/model"
)

func (a *app) couponCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coupon",
		Short: "Manage discount coupons",
	}
	cmd.AddCommand(a.couponAddCmd())
	cmd.AddCommand(a.couponListCmd())
	cmd.AddCommand(a.couponImportCmd())
	return cmd
}

func (a *app) couponAddCmd() *cobra.Command {
	var (
		c        model.Coupon
		typ      string
		expires  string
		plans    []string
		inactive bool
	)

	cmd := &cobra.Command{
		Use:   "add CODE",
		Short: "Add a coupon",
		Example: `  checkoutctl coupon add LAUNCH50 --type percentage --value 50 --max-uses 100 \
    --expires 2026-12-31 --plans template,template-setup`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Code = normalizeCode(args[0])
			c.Type = model.CouponType(typ)
			c.AppliesTo = plans
			c.Active = !inactive

			at, err := parseExpiry(expires)
			if err != nil {
				return err
			}
			c.ExpiresAt = at
			if err := c.Validate(); err != nil {
				return err
			}

			store, closeFn, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			if err := store.CreateCoupon(cmd.Context(), &c); err != nil {
				return fmt.Errorf("failed to add coupon: %w", err)
			}
			fmt.Fprintf(a.out, "added coupon %s\n", c.Code)
			return nil
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", string(model.CouponTypePercentage), "percentage or fixed")
	cmd.Flags().Float64Var(&c.Value, "value", 0, "percentage points or naira off")
	cmd.Flags().IntVar(&c.MaxUses, "max-uses", 100, "maximum number of redemptions")
	cmd.Flags().StringVar(&expires, "expires", "", "expiry as YYYY-MM-DD or RFC3339")
	cmd.Flags().StringSliceVar(&plans, "plans", []string{"template"}, "plan ids the coupon applies to")
	cmd.Flags().StringVar(&c.Description, "description", "", "human readable description")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the coupon disabled")
	return cmd
}

func (a *app) couponListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all coupons",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			coupons, err := store.ListCoupons(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(coupons)
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tTYPE\tVALUE\tUSES\tEXPIRES\tACTIVE\tPLANS")
			for _, c := range coupons {
				fmt.Fprintf(tw, "%s\t%s\t%g\t%d/%d\t%s\t%t\t%s\n",
					c.Code, c.Type, c.Value, c.CurrentUses, c.MaxUses,
					c.ExpiresAt.Format("2006-01-02"), c.Active, strings.Join(c.AppliesTo, ","))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	return cmd
}

func (a *app) couponImportCmd() *cobra.Command {
	var update bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import coupons from a YAML file",
		Long: `Import coupons from a YAML file of the form:

  coupons:
    - code: LAUNCH50
      type: percentage
      value: 50
      maxUses: 100
      expiresAt: 2026-12-31T23:59:59Z
      active: true
      appliesTo: [template]
      description: Launch week

Existing codes are skipped unless --update is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			coupons, err := readCoupons(f)
			if err != nil {
				return err
			}

			store, closeFn, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var added, updated, skipped int
			for _, c := range coupons {
				err := store.CreateCoupon(cmd.Context(), c)
				switch {
				case err == nil:
					added++
				case errors.Is(err, apperr.ErrAlreadyExists) && update:
					if err := store.UpdateCoupon(cmd.Context(), c); err != nil {
						return fmt.Errorf("failed to update coupon %s: %w", c.Code, err)
					}
					updated++
				case errors.Is(err, apperr.ErrAlreadyExists):
					skipped++
				default:
					return fmt.Errorf("failed to import coupon %s: %w", c.Code, err)
				}
			}
			fmt.Fprintf(a.out, "imported %d coupons (%d added, %d updated, %d skipped)\n",
				len(coupons), added, updated, skipped)
			return nil
		},
	}

	cmd.Flags().BoolVar(&update, "update", false, "overwrite coupons that already exist")
	return cmd
}

type couponFile struct {
	Coupons []*model.Coupon `yaml:"coupons"`
}

// readCoupons decodes and validates a coupon seed file.
func readCoupons(r io.Reader) ([]*model.Coupon, error) {
	var file couponFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse coupon file: %w", err)
	}

	seen := make(map[string]bool, len(file.Coupons))
	for i, c := range file.Coupons {
		c.Code = normalizeCode(c.Code)
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("coupon #%d: %w", i+1, err)
		}
		if seen[c.Code] {
			return nil, fmt.Errorf("coupon #%d: duplicate code %s", i+1, c.Code)
		}
		seen[c.Code] = true
	}
	return file.Coupons, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func parseExpiry(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, apperr.Invalid("expires", "--expires is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, apperr.Invalid("expires", "expiry must be YYYY-MM-DD or RFC3339")
	}
	// A bare date stays valid through the whole day.
	return t.Add(24*time.Hour - time.Second), nil
}
