package render

import "strings"

const stylesheet = `body {
  font-family: 'Times New Roman', serif;
  line-height: 1.6;
  margin: 40px;
  color: #333;
}
h1, h2, h3, h4, h5, h6 {
  color: #2c3e50;
  margin-top: 20px;
  margin-bottom: 10px;
}
p {
  margin-bottom: 12px;
  text-align: justify;
}
table {
  border-collapse: collapse;
  width: 100%;
  margin: 20px 0;
}
th, td {
  border: 1px solid #ddd;
  padding: 8px;
  text-align: left;
}
th {
  background-color: #f2f2f2;
  font-weight: bold;
}
ul, ol {
  margin: 10px 0;
  padding-left: 30px;
}
blockquote {
  margin: 20px 0;
  padding: 10px 20px;
  border-left: 4px solid #3498db;
  background-color: #f8f9fa;
}
img {
  max-width: 100%;
}
`

// page wraps a body fragment into a complete, styled HTML document.
func page(body string) string {
	var b strings.Builder
	b.Grow(len(body) + len(stylesheet) + 128)
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<style>\n")
	b.WriteString(stylesheet)
	b.WriteString("</style>\n</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}
