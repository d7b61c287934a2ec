package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
	"github.com/imrishuroy/go-storefront-orders/internal/config"
)

// ordersctl tables create
func newTablesCmd() *cobra.Command {
	tables := &cobra.Command{
		Use:   "tables",
		Short: "Manage DynamoDB tables",
	}
	tables.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create every table the service uses (existing tables are skipped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			clients, err := aws.NewAWSClients(cmd.Context(), cfg.AWSRegion, cfg.AWSEndpoint)
			if err != nil {
				return err
			}
			return createTables(cmd.Context(), clients.Tables, cfg, cmd.OutOrStdout())
		},
	})
	return tables
}

func stringKey(name string) ([]types.AttributeDefinition, []types.KeySchemaElement) {
	return []types.AttributeDefinition{{AttributeName: sdkaws.String(name), AttributeType: types.ScalarAttributeTypeS}},
		[]types.KeySchemaElement{{AttributeName: sdkaws.String(name), KeyType: types.KeyTypeHash}}
}

func table(name, key string) *dynamodb.CreateTableInput {
	attrs, schema := stringKey(key)
	return &dynamodb.CreateTableInput{
		TableName:            sdkaws.String(name),
		AttributeDefinitions: attrs,
		KeySchema:            schema,
		BillingMode:          types.BillingModePayPerRequest,
	}
}

// tableDefinitions mirrors the keys the stores read and write.
func tableDefinitions(cfg config.Config) []*dynamodb.CreateTableInput {
	ordersTable := table(cfg.OrdersTable, "order_id")
	ordersTable.AttributeDefinitions = append(ordersTable.AttributeDefinitions,
		types.AttributeDefinition{AttributeName: sdkaws.String("user_id"), AttributeType: types.ScalarAttributeTypeS},
		types.AttributeDefinition{AttributeName: sdkaws.String("created_at"), AttributeType: types.ScalarAttributeTypeN},
	)
	ordersTable.GlobalSecondaryIndexes = []types.GlobalSecondaryIndex{{
		IndexName: sdkaws.String(cfg.OrdersUserIndex),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: sdkaws.String("user_id"), KeyType: types.KeyTypeHash},
			{AttributeName: sdkaws.String("created_at"), KeyType: types.KeyTypeRange},
		},
		Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
	}}

	return []*dynamodb.CreateTableInput{
		ordersTable,
		table(cfg.IdempotencyTable, "idempotency_key"),
		table(cfg.UsersTable, "user_id"),
		table(cfg.ProductsTable, "product_id"),
		table(cfg.SettingsTable, "settings_id"),
	}
}

func createTables(ctx context.Context, api aws.TableAdminAPI, cfg config.Config, out io.Writer) error {
	for _, in := range tableDefinitions(cfg) {
		name := sdkaws.ToString(in.TableName)
		_, err := api.CreateTable(ctx, in)
		var apiErr smithy.APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceInUseException":
			fmt.Fprintf(out, "exists   %s\n", name)
			continue
		case err != nil:
			return fmt.Errorf("create table %s: %w", name, err)
		}
		fmt.Fprintf(out, "created  %s\n", name)
	}

	// expired idempotency records are removed by DynamoDB TTL
	_, err := api.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: sdkaws.String(cfg.IdempotencyTable),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: sdkaws.String("expires_at"),
			Enabled:       sdkaws.Bool(true),
		},
	})
	var apiErr smithy.APIError
	if err != nil && !(errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationException") {
		return fmt.Errorf("enable ttl on %s: %w", cfg.IdempotencyTable, err)
	}
	return nil
}
