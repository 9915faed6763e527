package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront-backend/internal/access"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// operatorID identifies storectl in order history and outbox actor refs.
const operatorID = "storectl"

type productCreator interface {
	Create(ctx context.Context, actor access.Actor, input product.ProductInput) (*product.ProductDTO, error)
}

func productsCmd(rt *toolEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Manage the product catalog",
	}

	var file string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create products from a JSON array of product inputs",
		Long: `Create products from a JSON file holding an array of product inputs.
Products whose productId already exists are skipped, so a seed file can be
applied repeatedly.

Example:
  storectl products seed --file seed/products.json`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()

			svc, err := productService(c.Context(), rt)
			if err != nil {
				return err
			}
			return seedProducts(c.Context(), svc, f, c.OutOrStdout())
		},
	}
	seed.Flags().StringVarP(&file, "file", "f", "", "path to the products JSON file")
	_ = seed.MarkFlagRequired("file")

	cmd.AddCommand(seed)
	return cmd
}

func productService(ctx context.Context, rt *toolEnv) (product.Service, error) {
	client, err := rt.database(ctx)
	if err != nil {
		return nil, err
	}
	return product.NewService(product.NewRepository(client.DB()), client, rt.logg)
}

func seedProducts(ctx context.Context, svc productCreator, r io.Reader, out io.Writer) error {
	var inputs []product.ProductInput
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}

	actor := access.Operator(operatorID)
	created, skipped := 0, 0
	for i, input := range inputs {
		dto, err := svc.Create(ctx, actor, input)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				skipped++
				fmt.Fprintf(out, "skip  %s (exists)\n", input.ProductID)
				continue
			}
			return fmt.Errorf("product %d (%s): %w", i, input.Name, err)
		}
		created++
		fmt.Fprintf(out, "added %s %s\n", dto.ProductID, dto.Name)
	}
	fmt.Fprintf(out, "seeded %d products, skipped %d\n", created, skipped)
	return nil
}
