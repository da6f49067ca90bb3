package services

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/envutil"
)

// Enrichment holds the optional signals pulled from the image itself, used
// to fill gaps the language model leaves in an analysis.
type Enrichment struct {
	Labels       []string
	ColorNames   []string
	DetectedText string
}

// VisionEnricher produces best-effort enrichment for a product image. A nil
// enricher is valid and means enrichment is disabled.
type VisionEnricher interface {
	Enrich(ctx context.Context, imageURL string) (*Enrichment, error)
}

// imageAnnotator is the slice of the Cloud Vision client this service uses.
type imageAnnotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
}

type gcpEnricher struct {
	log       *logger.Logger
	annotator imageAnnotator
}

// NewGCPEnricher builds the Cloud Vision enricher, or returns (nil, nil) when
// no credentials are configured so the caller can run without enrichment.
func NewGCPEnricher(ctx context.Context, log *logger.Logger) (VisionEnricher, error) {
	if !envutil.Bool("VISION_ENRICH_ENABLED", true) {
		return nil, nil
	}
	credsFile := envutil.Str("VISION_CREDENTIALS_FILE", "")
	if credsFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		log.Info("vision enrichment disabled, no GCP credentials")
		return nil, nil
	}
	var opts []option.ClientOption
	if credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &gcpEnricher{
		log:       log.With("service", "GCPEnricher"),
		annotator: client,
	}, nil
}

func newEnricherWith(log *logger.Logger, annotator imageAnnotator) VisionEnricher {
	return &gcpEnricher{log: log.With("service", "GCPEnricher"), annotator: annotator}
}

func (e *gcpEnricher) Enrich(ctx context.Context, imageURL string) (*Enrichment, error) {
	if imageURL == "" {
		return nil, nil
	}
	img := &visionpb.Image{Source: &visionpb.ImageSource{ImageUri: imageURL}}

	// One sub-request per feature so each detection carries its own error
	// and a failed secondary detection cannot sink the labels.
	resp, err := e.annotator.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{Image: img, Features: []*visionpb.Feature{{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: 10}}},
			{Image: img, Features: []*visionpb.Feature{{Type: visionpb.Feature_IMAGE_PROPERTIES}}},
			{Image: img, Features: []*visionpb.Feature{{Type: visionpb.Feature_TEXT_DETECTION, MaxResults: 1}}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("annotate image: %w", err)
	}
	if len(resp.GetResponses()) != 3 {
		return nil, fmt.Errorf("annotate image: %d responses for 3 requests", len(resp.GetResponses()))
	}
	labelRes, propsRes, textRes := resp.GetResponses()[0], resp.GetResponses()[1], resp.GetResponses()[2]

	if st := labelRes.GetError(); st != nil {
		return nil, fmt.Errorf("label detection: %s", st.GetMessage())
	}
	out := &Enrichment{}
	for _, l := range labelRes.GetLabelAnnotations() {
		if l.GetScore() >= 0.6 {
			out.Labels = append(out.Labels, strings.ToLower(l.GetDescription()))
		}
	}

	if st := propsRes.GetError(); st != nil {
		e.log.Warn("image properties detection failed", "error", st.GetMessage())
	} else if dc := propsRes.GetImagePropertiesAnnotation().GetDominantColors(); dc != nil {
		out.ColorNames = dominantColorNames(dc.GetColors(), 4)
	}

	if st := textRes.GetError(); st != nil {
		e.log.Warn("text detection failed", "error", st.GetMessage())
	} else if texts := textRes.GetTextAnnotations(); len(texts) > 0 {
		// The first annotation is the full-image transcription.
		out.DetectedText = strings.TrimSpace(texts[0].GetDescription())
	}

	return out, nil
}

// namedColor anchors RGB space to a small vocabulary usable in ad copy.
type namedColor struct {
	name    string
	r, g, b float64
}

var colorAnchors = []namedColor{
	{"black", 20, 20, 20},
	{"white", 240, 240, 240},
	{"gray", 128, 128, 128},
	{"red", 200, 40, 40},
	{"orange", 235, 140, 40},
	{"yellow", 230, 210, 60},
	{"green", 60, 160, 80},
	{"teal", 50, 160, 160},
	{"blue", 50, 90, 200},
	{"navy", 25, 40, 90},
	{"purple", 130, 70, 180},
	{"pink", 235, 140, 180},
	{"brown", 120, 80, 50},
	{"beige", 215, 195, 165},
}

func dominantColorNames(colors []*visionpb.ColorInfo, max int) []string {
	seen := map[string]bool{}
	var out []string
	for _, ci := range colors {
		if len(out) >= max {
			break
		}
		c := ci.GetColor()
		if c == nil {
			continue
		}
		name := nearestColorName(float64(c.GetRed()), float64(c.GetGreen()), float64(c.GetBlue()))
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func nearestColorName(r, g, b float64) string {
	best := colorAnchors[0].name
	bestDist := math.MaxFloat64
	for _, a := range colorAnchors {
		d := (r-a.r)*(r-a.r) + (g-a.g)*(g-a.g) + (b-a.b)*(b-a.b)
		if d < bestDist {
			bestDist = d
			best = a.name
		}
	}
	return best
}
