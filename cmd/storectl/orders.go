package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

type statusSetter interface {
	SetStatus(ctx context.Context, actor access.Actor, orderID, value string) (*orders.OrderDTO, error)
}

func ordersCmd(rt *toolEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Operator order actions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-status <orderId> <status>",
		Short: "Set an order's fulfillment status",
		Long: `Set an order's fulfillment status as an operator. The change goes
through the same transaction and outbox event as the admin API.

Example:
  storectl orders set-status 7f7c1a3e-... shipped`,
		Args: cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			client, err := rt.database(c.Context())
			if err != nil {
				return err
			}
			svc, err := orders.NewService(
				orders.NewRepository(client.DB()),
				client,
				outbox.NewService(outbox.NewRepository(client.DB()), rt.logg),
				metrics.NewStoreMetrics(nil),
				rt.logg,
			)
			if err != nil {
				return err
			}
			return setOrderStatus(c.Context(), svc, args[0], args[1], c.OutOrStdout())
		},
	})
	return cmd
}

func setOrderStatus(ctx context.Context, svc statusSetter, orderID, status string, out io.Writer) error {
	dto, err := svc.SetStatus(ctx, access.Operator(operatorID), orderID, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "order %s is now %s\n", dto.OrderID, dto.Status)
	return nil
}
