package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/chronicleworks/wikichron/internal/metrics"
	"github.com/chronicleworks/wikichron/internal/pipeline"
)

// converseAPI is the Bedrock surface the invoker needs; satisfied by
// *bedrockruntime.Client and by fakes in tests.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockInvoker calls a model through the Bedrock Converse API.
type BedrockInvoker struct {
	client  converseAPI
	modelID string
	logger  *zap.Logger
}

// NewBedrockInvoker resolves ambient AWS credentials for the region and
// builds an invoker for the configured model.
func NewBedrockInvoker(ctx context.Context, modelID, region string, logger *zap.Logger) (*BedrockInvoker, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newBedrockInvoker(bedrockruntime.NewFromConfig(cfg), modelID, logger), nil
}

func newBedrockInvoker(client converseAPI, modelID string, logger *zap.Logger) *BedrockInvoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BedrockInvoker{client: client, modelID: modelID, logger: logger}
}

// Invoke sends one prompt and returns the concatenated text blocks of
// the model's reply.
func (b *BedrockInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	out, err := b.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(b.modelID),
		Messages: []brtypes.Message{{
			Role: brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: prompt},
			},
		}},
	})
	if err != nil {
		metrics.ObserveModelInvocation("error")
		return "", classifyBedrockError(err)
	}

	message, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		metrics.ObserveModelInvocation("bad_response")
		return "", pipeline.NewError(pipeline.KindBadResponse, "invoke", fmt.Errorf("unexpected output type %T", out.Output))
	}

	var text strings.Builder
	for _, block := range message.Value.Content {
		if t, ok := block.(*brtypes.ContentBlockMemberText); ok {
			text.WriteString(t.Value)
		}
	}
	if text.Len() == 0 {
		metrics.ObserveModelInvocation("bad_response")
		return "", pipeline.NewError(pipeline.KindBadResponse, "invoke", fmt.Errorf("reply contains no text blocks"))
	}
	metrics.ObserveModelInvocation("ok")
	return text.String(), nil
}

// classifyBedrockError maps service error codes onto the pipeline's
// error kinds so RetryableService sees the transient ones.
func classifyBedrockError(err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return pipeline.NewError(pipeline.KindThrottled, "invoke", err)
		case "ServiceUnavailableException":
			return pipeline.NewError(pipeline.KindServiceUnavailable, "invoke", err)
		case "InternalServerException", "InternalServerError", "InternalFailure":
			return pipeline.NewError(pipeline.KindInternal, "invoke", err)
		case "ExpiredTokenException", "ExpiredToken":
			return pipeline.NewError(pipeline.KindCredentialExpired, "invoke", err)
		case "UnrecognizedClientException", "InvalidSignatureException":
			return pipeline.NewError(pipeline.KindCredentialInvalid, "invoke", err)
		case "ModelTimeoutException":
			return pipeline.NewError(pipeline.KindTimeout, "invoke", err)
		}
		return pipeline.NewError(pipeline.KindOther, "invoke", err)
	}
	return pipeline.NewError(pipeline.KindOf(err), "invoke", err)
}
