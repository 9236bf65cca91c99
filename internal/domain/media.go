package domain

// MediaKind 区分静态图片与视频。
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// MediaFile 描述一次规划得到的输入媒体（只做 stat，不读内容）。
//
// 不变量：
// - 本地输入：AbsPath 为 clean + absolute；Remote 为空
// - 远程输入（s3://bucket/key）：AbsPath 为空，下载后才有本地路径
type MediaFile struct {
	Input   string // 用户给出的原始标识（路径或 s3:// URI）
	AbsPath string
	Remote  *RemoteObject
	Kind    MediaKind
	Ext     string // ".mp4"，小写
}

// RemoteObject 是对象存储中的一条输入。
type RemoteObject struct {
	Bucket string
	Key    string
}

// Frame 是待识别的一张静态图（图片本身，或视频抽出的一帧）。
type Frame struct {
	Index int
	Path  string
}

// ReportRow 是写入表格的一行；Status 在“仅提取”模式下为空。
type ReportRow struct {
	Number string
	Status string
}
