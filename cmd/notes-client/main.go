// notes-client exercises a running notes-api: it creates, reads, updates,
// lists and deletes a note over HTTP and, when --grpc is given, over gRPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mrshanahan/notes-service/internal/rpc"
	"github.com/mrshanahan/notes-service/pkg/auth"
	"github.com/mrshanahan/notes-service/pkg/client"
	"github.com/mrshanahan/notes-service/pkg/notes"
)

var (
	baseURL  string
	grpcAddr string
	token    string
	secret   string
	userID   string
	role     string
)

var rootCmd = &cobra.Command{
	Use:          "notes-client",
	Short:        "Run a note lifecycle against a notes-api instance",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		accessToken, err := resolveToken()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := runREST(ctx, logger, accessToken); err != nil {
			return err
		}
		if grpcAddr == "" {
			return nil
		}
		return runRPC(ctx, logger, accessToken)
	},
}

func main() {
	rootCmd.Flags().StringVar(&baseURL, "url", "http://localhost:3333/", "Base URL of the HTTP API")
	rootCmd.Flags().StringVar(&grpcAddr, "grpc", "", "Address of the gRPC API, e.g. localhost:50051")
	rootCmd.Flags().StringVar(&token, "token", os.Getenv("NOTES_API_TOKEN"), "Bearer token to send")
	rootCmd.Flags().StringVar(&secret, "secret", os.Getenv("NOTES_API_JWT_SECRET"), "Shared secret used to mint a token when --token is empty")
	rootCmd.Flags().StringVar(&userID, "user", "", "User id for minted tokens (default: random)")
	rootCmd.Flags().StringVar(&role, "role", notes.RoleUser, "Role claim for minted tokens")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveToken() (string, error) {
	if token != "" {
		return token, nil
	}
	if secret == "" {
		return "", errors.New("either --token or --secret is required")
	}
	user := uuid.New()
	if userID != "" {
		parsed, err := uuid.Parse(userID)
		if err != nil {
			return "", fmt.Errorf("invalid --user: %w", err)
		}
		user = parsed
	}
	return auth.IssueToken(secret, user, role, time.Hour)
}

func runREST(ctx context.Context, logger *slog.Logger, accessToken string) error {
	c := client.NewTokenClient(ctx, baseURL, accessToken)

	note, err := c.CreateNote(ctx, client.NoteInput{Title: "this is a new note", Content: "first draft"})
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	printNote("New note", note)

	note, err = c.GetNote(ctx, note.ID)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	printNote("GOT new note", note)

	note, err = c.UpdateNote(ctx, note.ID, note.Title, "This is the\nnew content!")
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	printNote("Content updated", note)

	list, err := c.ListNotes(ctx, client.ListOptions{})
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	fmt.Printf("%d of %d notes:\n", len(list.Notes), list.Total)
	for _, n := range list.Notes {
		printNote("", n)
	}

	if err := c.DeleteNote(ctx, note.ID); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	logger.Info("HTTP lifecycle completed", "note", note.ID)
	return nil
}

func runRPC(ctx context.Context, logger *slog.Logger, accessToken string) error {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", grpcAddr, err)
	}
	defer conn.Close()

	c := rpc.NewClient(conn, accessToken)
	ctx = rpc.WithRequestID(ctx, uuid.NewString())

	created, err := c.CreateNote(ctx, &rpc.CreateNoteRequest{Title: "rpc note", Content: "over gRPC"})
	if err != nil {
		return fmt.Errorf("rpc create: %w", err)
	}
	fmt.Printf("RPC note %s created at %s\n", created.ID, created.CreatedAt)

	updated, err := c.UpdateNote(ctx, &rpc.UpdateNoteRequest{EntityID: created.ID, Title: created.Title, Content: "edited over gRPC"})
	if err != nil {
		return fmt.Errorf("rpc update: %w", err)
	}
	fmt.Printf("RPC note %s updated at %s\n", updated.ID, updated.UpdatedAt)

	if _, err := c.DeleteNote(ctx, &rpc.DeleteNoteRequest{EntityID: created.ID}); err != nil {
		return fmt.Errorf("rpc delete: %w", err)
	}
	logger.Info("gRPC lifecycle completed", "note", created.ID)
	return nil
}

func printNote(label string, n *notes.Note) {
	if label != "" {
		fmt.Println(label + ":")
	}
	fmt.Printf("  %s  %-30q owner=%s updated=%s\n", n.ID, n.Title, n.OwnerID, n.UpdatedAt.Format(time.RFC3339))
}
