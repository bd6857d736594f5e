package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/haatos/simple-cd/internal/awsenv"
	"github.com/haatos/simple-cd/internal/engine"
	"github.com/haatos/simple-cd/internal/pipeline"
	"github.com/haatos/simple-cd/internal/registry"
	"github.com/haatos/simple-cd/internal/service"
)

// simplecd runs a single bootstrap-then-update deploy against the account
// and region given by the environment, the same way a hosted runner would.
func main() {
	appDir := flag.String("app-dir", ".", "directory containing the stack app")
	stackName := flag.String("stack", service.DefaultStackName, "stack to deploy")
	requireApproval := flag.String(
		"require-approval", pipeline.ApprovalNever, "cdk --require-approval value",
	)
	imageTag := flag.String(
		"image-tag", registry.DefaultImageTag, "image tag resolved for each service unit",
	)
	flag.Parse()

	cfg, err := pipeline.ConfigFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	awsCfg, err := awsenv.NewConfig(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := awsenv.VerifyIdentity(ctx, sts.NewFromConfig(awsCfg), cfg); err != nil {
		log.Fatal(err)
	}

	eng := engine.NewCDKEngine(*appDir)
	eng.Output = func(s string) { fmt.Print(s) }
	eng.Checker = engine.NewConvergenceChecker(awsCfg)
	resolver := registry.NewECRResolverWithClient(ecr.NewFromConfig(awsCfg), *imageTag)

	runner := pipeline.NewRunner(eng, resolver)
	runner.SetOutput(func(s string) { fmt.Print(s) })

	results, err := runner.Run(ctx, cfg, pipeline.StackDefinition{
		StackName:       *stackName,
		AppDir:          *appDir,
		RequireApproval: *requireApproval,
	})
	for _, res := range results {
		if res.Succeeded() {
			fmt.Printf("%s: %s\n", res.Stage, res.Status)
		} else {
			fmt.Printf("%s: %s (%s)\n", res.Stage, res.Status, res.ErrorDetail)
		}
	}
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
