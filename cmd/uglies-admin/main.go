package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"uglies/internal/config"
	"uglies/internal/database"
	"uglies/internal/models"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "uglies-admin",
		Short: "Operational tasks for the UGLIES marketplace",
	}

	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(indexesCmd())
	rootCmd.AddCommand(promoteCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withDatabase connects using the server's configuration and runs fn.
func withDatabase(fn func(ctx context.Context, db *mongo.Database) error) error {
	cfg := config.Load()
	if cfg.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Disconnect(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return fn(ctx, client.Database(cfg.DBName))
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load sample farmers and products",
		Long: `Load sample farmers and products from a YAML file.

Nothing is written when the farmers collection already has documents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := loadSeedFile(file)
			if err != nil {
				return err
			}
			return withDatabase(func(ctx context.Context, db *mongo.Database) error {
				farmers, products, err := applySeed(ctx, db, data, time.Now().UTC())
				if err != nil {
					return err
				}
				if farmers == 0 {
					fmt.Println("Sample data already exists")
					return nil
				}
				fmt.Printf("Created %d farmers and %d products\n", farmers, products)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "seed/sample.yaml", "seed file")
	return cmd
}

func indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the collection indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(ctx context.Context, db *mongo.Database) error {
				if err := database.EnsureIndexes(db); err != nil {
					return err
				}
				fmt.Println("Indexes ensured")
				return nil
			})
		},
	}
}

func promoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote [userId]",
		Short: "Make a user an admin, creating their profile when missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := primitive.ObjectIDFromHex(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			return withDatabase(func(ctx context.Context, db *mongo.Database) error {
				res, err := db.Collection(database.Profiles).UpdateOne(ctx,
					bson.M{"userId": userID},
					bson.M{
						"$set": bson.M{"role": models.RoleAdmin},
						"$setOnInsert": bson.M{
							"name":                "Admin User",
							"neighborhood":        "",
							"sustainabilityScore": 0,
							"totalWastePrevented": 0.0,
							"joinDate":            time.Now().UTC(),
						},
					},
					options.Update().SetUpsert(true),
				)
				if err != nil {
					return err
				}
				if res.UpsertedCount > 0 {
					fmt.Println("Admin profile created")
				} else {
					fmt.Println("User promoted to admin")
				}
				return nil
			})
		},
	}
}
