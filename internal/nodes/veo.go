package nodes

import (
	"context"
	"time"

	"mai/internal/clients/media"
	"mai/internal/codec"
	"mai/internal/params"
	"mai/internal/recorder"
	"mai/internal/request"
	"mai/internal/response"
	"mai/internal/video"
)

type veo struct {
	remote
	record  recorder.Recorder
	demuxer video.Demuxer
	media   *media.Client
}

var veoRequest = request.Descriptor{
	Encoding: request.Multipart,
	Fields: []request.Field{
		request.ParamAt("user_prompt", "prompt"),
		request.Param("negative_prompt").In("params"),
		request.Param("resolution").In("params"),
		request.Param("enhance_prompt").In("params"),
	},
}

// Invoke asks the endpoint for a video url, downloads the video and splits
// it into frames and audio. A video that cannot be split still succeeds,
// with a placeholder frame and the clip marked degraded.
func (n *veo) Invoke(ctx context.Context, v params.Values) ([]any, error) {
	if _, err := params.RequireURL(v); err != nil {
		return nil, err
	}
	file, err := request.FilePart("file", "image", v.Tensor("image"), codec.JPEG)
	if err != nil {
		return nil, err
	}

	resp, err := n.post(ctx, v, veoRequest, file)
	if err != nil {
		return nil, err
	}
	videoURL, err := response.Pointer(resp.Body, "url")
	if err != nil {
		return nil, err
	}

	clip, err := n.media.FetchVideo(ctx, videoURL)
	if err != nil {
		return nil, err
	}
	parts, degraded := video.Extract(ctx, n.demuxer, clip.Data, n.logger)
	clip.Degraded = degraded

	n.record.Record(ctx, videoURL)
	return []any{videoURL, clip, parts.Frames, parts.Audio, parts.FrameRate}, nil
}

func googleVeo() Definition {
	const class = "MaiGoogleVeoImageToVideo"
	return Definition{
		Class:   class,
		Display: "mAI - Google Veo Image To Video",
		Inputs: schema(inputs(params.ImageInput("image")), params.Endpoint(), inputs(
			params.Prompt("user_prompt"),
			params.Prompt("negative_prompt"),
			params.Text("resolution", "720p"),
			params.Bool("enhance_prompt", false),
			params.Integer("seed", 42),
		)),
		Outputs: outputs(OutString, "video_url", OutVideo, "video", OutImage, "frames", OutAudio, "audio", OutFloat, "fps"),
		Timeout: 400 * time.Second,
		New: func(d Deps) Node {
			return &veo{
				remote:  newRemote(d, class),
				record:  d.Recorders.For(class),
				demuxer: d.Demuxer,
				media:   media.NewClient(d.Client.Timeout, d.MaxVideoBytes),
			}
		},
	}
}
