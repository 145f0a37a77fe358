package rotation_test

import (
	"context"
	"fmt"

	"github.com/systmms/rolecreds/internal/logging"
	"github.com/systmms/rolecreds/pkg/credentials"
	"github.com/systmms/rolecreds/pkg/rotation"
)

func ExampleEngine() {
	retriever := credentials.RetrieverFunc(func(ctx context.Context) (credentials.Snapshot, error) {
		return credentials.Snapshot{
			Credentials: credentials.Credentials{
				AccessKeyID:     "AKIDEXAMPLE",
				SecretAccessKey: "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY",
			},
			Source: "example",
		}, nil
	})

	engine, err := rotation.New(rotation.Config{
		Label:     "example",
		Retriever: retriever,
		Logger:    logging.Discard(),
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer engine.Close()

	if err := engine.Start(context.Background()); err != nil {
		fmt.Println(err)
		return
	}

	fmt.Println(engine.Status())
	fmt.Println(engine.Credentials().AccessKeyID)
	// Output:
	// running
	// AKIDEXAMPLE
}
